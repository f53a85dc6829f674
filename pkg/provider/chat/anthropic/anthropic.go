// Package anthropic provides a chat provider backed by the Anthropic
// Messages API.
//
// The adapter translates between the neutral [chat.Request] / [chat.StreamEvent]
// types and the SDK's message params and server-sent stream events. Tool-use
// input arrives as partial JSON fragments; the adapter forwards them verbatim
// and leaves accumulation to the chat driver.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/draumabilar/sunna/pkg/provider/chat"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 300
)

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel overrides the model identifier. Defaults to "claude-sonnet-4-5".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithTimeout sets a per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements chat.Provider using the Anthropic Messages API.
// Safe for concurrent use.
type Provider struct {
	client  sdk.Client
	model   string
	timeout time.Duration
}

// New constructs an Anthropic chat Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(p.timeout))
	}
	p.client = sdk.NewClient(reqOpts...)
	return p, nil
}

// StreamMessage implements chat.Provider. The SDK stream is consumed on a
// dedicated goroutine that translates events onto the returned channel.
func (p *Provider) StreamMessage(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
	params, err := buildParams(p.model, req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	events := make(chan chat.StreamEvent)

	go func() {
		defer close(events)

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case sdk.ContentBlockStartEvent:
				if block, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
					events <- chat.StreamEvent{
						Type:     chat.EventToolUseStart,
						ToolID:   block.ID,
						ToolName: block.Name,
					}
				}
			case sdk.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case sdk.TextDelta:
					events <- chat.StreamEvent{Type: chat.EventTextDelta, Text: delta.Text}
				case sdk.InputJSONDelta:
					events <- chat.StreamEvent{Type: chat.EventInputJSONDelta, PartialJSON: delta.PartialJSON}
				}
			case sdk.ContentBlockStopEvent:
				events <- chat.StreamEvent{Type: chat.EventBlockStop}
			case sdk.MessageStopEvent:
				events <- chat.StreamEvent{Type: chat.EventMessageStop}
			}
		}
		if err := stream.Err(); err != nil {
			events <- chat.StreamEvent{Type: chat.EventError, Err: fmt.Errorf("anthropic: stream: %w", err)}
		}
	}()

	return events, nil
}

// Warmup implements chat.Provider. A ten-token request forces the TLS
// handshake and connection setup before the first caller turn.
func (p *Provider) Warmup(ctx context.Context) error {
	resp, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: 10,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock("Halló")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic: warmup: %w", err)
	}
	slog.Info("anthropic warmed up", "model", p.model, "stop_reason", resp.StopReason)
	return nil
}

// Close implements chat.Provider.
func (p *Provider) Close() error { return nil }

// buildParams maps a neutral request onto SDK message params.
func buildParams(model string, req chat.Request) (sdk.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  make([]sdk.MessageParam, 0, len(req.Messages)),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature >= 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	for _, msg := range req.Messages {
		blocks, err := contentBlocks(msg)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		switch msg.Role {
		case chat.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(blocks...))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(blocks...))
		}
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        def.Name,
				Description: sdk.String(def.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: def.Properties,
					Required:   def.Required,
				},
			},
		})
	}

	return params, nil
}

// contentBlocks expands one neutral message into SDK content block params in
// the order text, tool uses, tool results.
func contentBlocks(msg chat.Message) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	if msg.Text != "" {
		blocks = append(blocks, sdk.NewTextBlock(msg.Text))
	}
	for _, tu := range msg.ToolUses {
		blocks = append(blocks, sdk.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
	}
	for _, tr := range msg.ToolResults {
		blocks = append(blocks, sdk.NewToolResultBlock(tr.ToolUseID, tr.Content, false))
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("message with role %q has no content", msg.Role)
	}
	return blocks, nil
}

// Package chat drives one streaming chat-model turn: it feeds the provider's
// text deltas through the sentence segmenter, emitting complete sentences as
// soon as they close, and runs the tool-use loop until the model answers
// without requesting a tool.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/draumabilar/sunna/internal/chat/segment"
	provider "github.com/draumabilar/sunna/pkg/provider/chat"
)

// DefaultResponseTimeout bounds one full driver turn, tool rounds included.
const DefaultResponseTimeout = 10 * time.Second

// ToolRunner executes one tool invocation and returns its result as an
// opaque string for the model.
type ToolRunner interface {
	Execute(ctx context.Context, name string, input json.RawMessage) string
}

// Option is a functional option for configuring a Driver.
type Option func(*Driver)

// WithMaxTokens bounds each completion. Defaults to the provider default.
func WithMaxTokens(n int) Option {
	return func(d *Driver) { d.maxTokens = n }
}

// WithTemperature sets the sampling temperature. Defaults to 0.7.
func WithTemperature(t float64) Option {
	return func(d *Driver) { d.temperature = t }
}

// WithTimeout bounds one Respond call. Defaults to
// [DefaultResponseTimeout]; zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) { d.timeout = timeout }
}

// WithAbbreviations replaces the segmenter's abbreviation set.
func WithAbbreviations(abbreviations []string) Option {
	return func(d *Driver) { d.abbreviations = abbreviations }
}

// Driver wraps a streaming chat provider and a tool runner.
// Safe for concurrent use; per-turn state lives on the stack of Respond.
type Driver struct {
	provider      provider.Provider
	runner        ToolRunner
	tools         []provider.ToolDefinition
	abbreviations []string
	maxTokens     int
	temperature   float64
	timeout       time.Duration
}

// New creates a Driver. tools may be empty; runner may be nil only when it
// is.
func New(p provider.Provider, runner ToolRunner, tools []provider.ToolDefinition, opts ...Option) *Driver {
	d := &Driver{
		provider:    p,
		runner:      runner,
		tools:       tools,
		temperature: 0.7,
		timeout:     DefaultResponseTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Respond streams one assistant turn. Every complete sentence is passed to
// emit in order; a non-nil emit error aborts the turn. The returned string is
// the full spoken text (sentences joined by single spaces), which the caller
// appends to history. Tool rounds happen internally and extend only the
// provider-side message list, never the caller's history.
func (d *Driver) Respond(ctx context.Context, system string, history []provider.Message, emit func(sentence string) error) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	messages := slices.Clone(history)
	var spoken []string

	for round := 0; ; round++ {
		text, toolUses, err := d.streamRound(ctx, system, messages, func(sentence string) error {
			spoken = append(spoken, sentence)
			return emit(sentence)
		})
		if err != nil {
			return strings.Join(spoken, " "), err
		}
		if len(toolUses) == 0 {
			return strings.Join(spoken, " "), nil
		}

		messages = append(messages, provider.Message{
			Role:     provider.RoleAssistant,
			Text:     strings.TrimSpace(text),
			ToolUses: toolUses,
		})

		results := make([]provider.ToolResult, 0, len(toolUses))
		for _, tu := range toolUses {
			slog.Info("tool call", "name", tu.Name, "round", round)
			results = append(results, provider.ToolResult{
				ToolUseID: tu.ID,
				Content:   d.runner.Execute(ctx, tu.Name, tu.Input),
			})
		}
		messages = append(messages, provider.Message{
			Role:        provider.RoleUser,
			ToolResults: results,
		})
	}
}

// toolAccum gathers one open tool-use content block.
type toolAccum struct {
	id   string
	name string
	json strings.Builder
}

// streamRound consumes one provider completion, emitting sentences and
// collecting tool-use records.
func (d *Driver) streamRound(ctx context.Context, system string, messages []provider.Message, emit func(string) error) (string, []provider.ToolUse, error) {
	events, err := d.provider.StreamMessage(ctx, provider.Request{
		System:      system,
		Messages:    messages,
		Tools:       d.tools,
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	if err != nil {
		return "", nil, fmt.Errorf("chat: start stream: %w", err)
	}
	// The provider goroutine blocks until its channel is drained; on early
	// return the remainder is discarded in the background.
	defer func() {
		go func() {
			for range events {
			}
		}()
	}()

	seg := segment.New(d.abbreviations)
	var fullText strings.Builder
	var toolUses []provider.ToolUse
	var open *toolAccum

	for ev := range events {
		switch ev.Type {
		case provider.EventTextDelta:
			fullText.WriteString(ev.Text)
			for _, sentence := range seg.Push(ev.Text) {
				if err := emit(sentence); err != nil {
					return fullText.String(), nil, err
				}
			}
		case provider.EventToolUseStart:
			open = &toolAccum{id: ev.ToolID, name: ev.ToolName}
		case provider.EventInputJSONDelta:
			if open != nil {
				open.json.WriteString(ev.PartialJSON)
			}
		case provider.EventBlockStop:
			if open != nil {
				toolUses = append(toolUses, provider.ToolUse{
					ID:    open.id,
					Name:  open.name,
					Input: parseToolInput(open.json.String()),
				})
				open = nil
			}
		case provider.EventMessageStop:
			// Terminal; the channel closes right after.
		case provider.EventError:
			return fullText.String(), nil, ev.Err
		}
	}

	for _, sentence := range seg.Flush() {
		if err := emit(sentence); err != nil {
			return fullText.String(), nil, err
		}
	}
	return fullText.String(), toolUses, nil
}

// parseToolInput returns the accumulated input JSON, degrading to the empty
// object when the provider sent nothing or the fragments do not parse.
func parseToolInput(raw string) json.RawMessage {
	if raw == "" || !json.Valid([]byte(raw)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}

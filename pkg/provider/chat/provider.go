// Package chat defines the Provider interface for streaming chat-model
// backends.
//
// A chat provider wraps a large language model API and presents its streamed
// output as a flat sequence of [StreamEvent] values: text deltas, tool-use
// block boundaries, partial tool-input JSON, and terminal markers. The chat
// driver dispatches on the event tag and keeps a small accumulator per open
// content block; the provider never interprets tool semantics itself.
//
// Implementations must be safe for concurrent use; one shared provider
// instance serves every active call.
package chat

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

// Message roles in the conversation history.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolUse is a structured request by the model to run a named tool.
type ToolUse struct {
	// ID is the provider-assigned opaque identifier, echoed back in the
	// matching ToolResult.
	ID string
	// Name is the tool name from the catalog.
	Name string
	// Input is the parsed tool arguments. Never nil; malformed provider
	// JSON degrades to the empty object.
	Input json.RawMessage
}

// ToolResult carries the outcome of one tool execution back to the model.
type ToolResult struct {
	// ToolUseID links the result to the ToolUse that requested it.
	ToolUseID string
	// Content is the tool output as an opaque string, typically JSON.
	Content string
}

// Message is one entry of the conversation history. A message carries plain
// text, tool-use requests, tool results, or a combination; providers map the
// populated fields onto their wire format.
type Message struct {
	Role        Role
	Text        string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Properties is the JSON-schema properties object for the tool input.
	Properties map[string]any
	// Required lists the property names the model must supply.
	Required []string
}

// EventType tags a StreamEvent variant.
type EventType int

// Stream event tags, in rough order of appearance within a completion.
const (
	// EventTextDelta carries a fragment of assistant text.
	EventTextDelta EventType = iota
	// EventToolUseStart opens a tool-use content block.
	EventToolUseStart
	// EventInputJSONDelta carries a fragment of the open block's input JSON.
	EventInputJSONDelta
	// EventBlockStop closes the open content block.
	EventBlockStop
	// EventMessageStop ends the completion.
	EventMessageStop
	// EventError reports a stream failure; it is always the final event.
	EventError
)

// StreamEvent is one tagged event from a streaming completion. Only the
// fields for the given Type are populated.
type StreamEvent struct {
	Type EventType

	// Text is the delta for EventTextDelta.
	Text string

	// ToolID and ToolName identify the block for EventToolUseStart.
	ToolID   string
	ToolName string

	// PartialJSON is the fragment for EventInputJSONDelta.
	PartialJSON string

	// Err is the failure for EventError.
	Err error
}

// Request is one streaming completion request.
type Request struct {
	// System is the persona prompt.
	System string
	// Messages is the ordered conversation history.
	Messages []Message
	// Tools is the catalog offered to the model. May be empty.
	Tools []ToolDefinition
	// MaxTokens bounds the completion length. Zero means the provider
	// default.
	MaxTokens int
	// Temperature in [0, 1]. Negative means the provider default.
	Temperature float64
}

// Provider is the abstraction over any streaming chat-model backend.
type Provider interface {
	// StreamMessage starts one completion and returns a channel of events.
	// The channel is closed after EventMessageStop or EventError; the caller
	// must drain it. Cancelling ctx terminates the stream with EventError.
	//
	// Returns a non-nil error only if the stream cannot be started.
	StreamMessage(ctx context.Context, req Request) (<-chan StreamEvent, error)

	// Warmup issues a minimal request to establish the connection so the
	// first caller turn is not paying the TLS handshake.
	Warmup(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

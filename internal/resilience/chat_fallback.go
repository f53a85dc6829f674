package resilience

import (
	"context"
	"errors"

	"github.com/draumabilar/sunna/pkg/provider/chat"
)

// ChatFallback implements [chat.Provider] with failover on stream start.
//
// Failover only happens when StreamMessage itself returns an error. Once a
// stream is open, events flow from that backend alone; a mid-stream
// EventError is surfaced to the caller rather than retried, because by then
// partial text may already have been spoken to the caller.
type ChatFallback struct {
	group *FallbackGroup[chat.Provider]
}

var _ chat.Provider = (*ChatFallback)(nil)

// NewChatFallback creates a [ChatFallback] with primary as the preferred
// backend.
func NewChatFallback(primary chat.Provider, primaryName string, cfg FallbackConfig) *ChatFallback {
	return &ChatFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional chat provider as a fallback.
func (f *ChatFallback) AddFallback(name string, provider chat.Provider) {
	f.group.AddFallback(name, provider)
}

// StreamMessage starts a completion on the first backend that accepts it.
func (f *ChatFallback) StreamMessage(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
	return ExecuteWithResult(f.group, func(p chat.Provider) (<-chan chat.StreamEvent, error) {
		return p.StreamMessage(ctx, req)
	})
}

// Warmup warms every backend.
func (f *ChatFallback) Warmup(ctx context.Context) error {
	var errs []error
	for _, p := range f.group.Values() {
		if err := p.Warmup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend.
func (f *ChatFallback) Close() error {
	var errs []error
	for _, p := range f.group.Values() {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package mock provides a test double for the chat.Provider interface.
//
// Use Provider to script streaming completions for the chat driver. Scripts
// is a sequence of event slices; each StreamMessage call plays the next
// slice, which lets tests exercise multi-round tool loops.
//
// Example:
//
//	p := &mock.Provider{
//	    Scripts: [][]chat.StreamEvent{{
//	        {Type: chat.EventTextDelta, Text: "Halló! "},
//	        {Type: chat.EventMessageStop},
//	    }},
//	}
//	events, _ := p.StreamMessage(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/draumabilar/sunna/pkg/provider/chat"
)

// StreamCall records a single invocation of StreamMessage.
type StreamCall struct {
	// Ctx is the context passed to StreamMessage.
	Ctx context.Context
	// Req is the Request passed to StreamMessage.
	Req chat.Request
}

// Provider is a mock implementation of chat.Provider.
// Zero values for response fields cause methods to return empty streams and
// nil errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// Scripts is the sequence of event streams returned by successive
	// StreamMessage calls. When exhausted, an immediate EventMessageStop
	// stream is returned.
	Scripts [][]chat.StreamEvent

	// StreamErr, if non-nil, is returned from StreamMessage instead of
	// starting a stream.
	StreamErr error

	// WarmupErr, if non-nil, is returned from Warmup.
	WarmupErr error

	// CloseErr, if non-nil, is returned from Close.
	CloseErr error

	// StreamCalls records every StreamMessage invocation in order.
	StreamCalls []StreamCall

	// WarmupCalls counts Warmup invocations.
	WarmupCalls int

	// CloseCalls counts Close invocations.
	CloseCalls int
}

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// StreamMessage implements chat.Provider. Events are delivered on an
// unbuffered channel from a goroutine, matching real adapter behaviour.
func (p *Provider) StreamMessage(ctx context.Context, req chat.Request) (<-chan chat.StreamEvent, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	if p.StreamErr != nil {
		p.mu.Unlock()
		return nil, p.StreamErr
	}
	var script []chat.StreamEvent
	if idx := len(p.StreamCalls) - 1; idx < len(p.Scripts) {
		script = p.Scripts[idx]
	} else {
		script = []chat.StreamEvent{{Type: chat.EventMessageStop}}
	}
	p.mu.Unlock()

	events := make(chan chat.StreamEvent)
	go func() {
		defer close(events)
		for _, ev := range script {
			select {
			case events <- ev:
			case <-ctx.Done():
				events <- chat.StreamEvent{Type: chat.EventError, Err: ctx.Err()}
				return
			}
		}
	}()
	return events, nil
}

// Warmup implements chat.Provider.
func (p *Provider) Warmup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WarmupCalls++
	return p.WarmupErr
}

// Close implements chat.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return p.CloseErr
}

// Requests returns the requests passed to StreamMessage so far.
func (p *Provider) Requests() []chat.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chat.Request, len(p.StreamCalls))
	for i, c := range p.StreamCalls {
		out[i] = c.Req
	}
	return out
}

// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed scripted transcripts to the call orchestrator and to
// verify which audio buffers reach the STT backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: []stt.Result{{Text: "Halló", Confidence: 1, IsFinal: true}},
//	}
//	res, _ := p.Transcribe(ctx, pcm)
package mock

import (
	"context"
	"sync"

	"github.com/draumabilar/sunna/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// PCM is a copy of the audio buffer passed to Transcribe.
	PCM []byte
}

// Provider is a mock implementation of stt.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// Results is the sequence of results returned by successive Transcribe
	// calls. When exhausted, the last element is repeated; when empty, the
	// zero Result is returned.
	Results []stt.Result

	// TranscribeErr, if non-nil, is returned from every Transcribe call.
	TranscribeErr error

	// WarmupErr, if non-nil, is returned from Warmup.
	WarmupErr error

	// CloseErr, if non-nil, is returned from Close.
	CloseErr error

	// TranscribeCalls records every Transcribe invocation in order.
	TranscribeCalls []TranscribeCall

	// WarmupCalls counts Warmup invocations.
	WarmupCalls int

	// CloseCalls counts Close invocations.
	CloseCalls int
}

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, PCM: buf})

	if p.TranscribeErr != nil {
		return stt.Result{}, p.TranscribeErr
	}
	if len(p.Results) == 0 {
		return stt.Result{}, nil
	}
	idx := len(p.TranscribeCalls) - 1
	if idx >= len(p.Results) {
		idx = len(p.Results) - 1
	}
	return p.Results[idx], nil
}

// Calls returns a snapshot of the Transcribe invocations so far.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Warmup implements stt.Provider.
func (p *Provider) Warmup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WarmupCalls++
	return p.WarmupErr
}

// Close implements stt.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return p.CloseErr
}

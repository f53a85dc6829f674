// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled PCM buffers to the call orchestrator and to
// verify exactly which sentences reach the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeResult: []byte("pcm"),
//	    Fillers:          map[string][]byte{"thinking": []byte("filler")},
//	}
//	audio, _ := p.Synthesize(ctx, "Góðan daginn!")
package mock

import (
	"context"
	"sync"

	"github.com/draumabilar/sunna/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the sentence passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// SynthesizeResult is returned by every successful Synthesize call.
	SynthesizeResult []byte

	// SynthesizeErr, if non-nil, is returned from every Synthesize call.
	SynthesizeErr error

	// SampleRate is returned by OutputSampleRate. Defaults to 24000 when
	// zero.
	SampleRate int

	// Fillers maps filler keys to the audio returned by FillerAudio.
	Fillers map[string][]byte

	// WarmupErr, if non-nil, is returned from Warmup.
	WarmupErr error

	// CloseErr, if non-nil, is returned from Close.
	CloseErr error

	// SynthesizeCalls records every Synthesize invocation in order.
	SynthesizeCalls []SynthesizeCall

	// WarmupCalls counts Warmup invocations.
	WarmupCalls int

	// CloseCalls counts Close invocations.
	CloseCalls int
}

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return p.SynthesizeResult, nil
}

// OutputSampleRate implements tts.Provider.
func (p *Provider) OutputSampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SampleRate == 0 {
		return 24000
	}
	return p.SampleRate
}

// FillerAudio implements tts.Provider.
func (p *Provider) FillerAudio(key string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Fillers[key]
}

// Warmup implements tts.Provider.
func (p *Provider) Warmup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WarmupCalls++
	return p.WarmupErr
}

// Close implements tts.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return p.CloseErr
}

// Texts returns the sentences passed to Synthesize so far.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		out[i] = c.Text
	}
	return out
}

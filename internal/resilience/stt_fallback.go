package resilience

import (
	"context"
	"errors"

	"github.com/draumabilar/sunna/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple transcription backends. Each backend has its own circuit breaker,
// so a Whisper API outage routes utterances to the local model without
// hammering the dead endpoint.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the utterance against the first healthy backend.
func (f *STTFallback) Transcribe(ctx context.Context, pcm []byte) (stt.Result, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Result, error) {
		return p.Transcribe(ctx, pcm)
	})
}

// Warmup warms every backend so a later failover does not pay the first-use
// cost. Failures are joined; the caller decides whether they are fatal.
func (f *STTFallback) Warmup(ctx context.Context) error {
	var errs []error
	for _, p := range f.group.Values() {
		if err := p.Warmup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend.
func (f *STTFallback) Close() error {
	var errs []error
	for _, p := range f.group.Values() {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

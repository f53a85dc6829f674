package resilience

import (
	"context"
	"errors"

	"github.com/draumabilar/sunna/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends.
//
// The output sample rate is always the primary's. Fallback audio at a
// different native rate is resampled by the telephony layer anyway, so
// reporting the primary's rate keeps the downstream conversion stable across
// failovers mid-call.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text)
	})
}

// OutputSampleRate reports the primary backend's native sample rate.
func (f *TTSFallback) OutputSampleRate() int {
	return f.group.Values()[0].OutputSampleRate()
}

// FillerAudio returns the primary's pre-rendered filler if it has one,
// otherwise the first fallback that does. Fillers are rendered at warmup, so
// this never blocks on a network call.
func (f *TTSFallback) FillerAudio(key string) []byte {
	for _, p := range f.group.Values() {
		if pcm := p.FillerAudio(key); len(pcm) > 0 {
			return pcm
		}
	}
	return nil
}

// Warmup warms every backend, including filler pre-rendering.
func (f *TTSFallback) Warmup(ctx context.Context) error {
	var errs []error
	for _, p := range f.group.Values() {
		if err := p.Warmup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend.
func (f *TTSFallback) Close() error {
	var errs []error
	for _, p := range f.group.Values() {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., OpenAI TTS or Google
// Gemini TTS) and returns raw wideband PCM16 audio for a sentence of text. The
// call orchestrator resamples and transcodes that audio down to the telephony
// codec, so providers are free to emit at their native rate; callers query
// [Provider.OutputSampleRate] before converting.
//
// Implementations must be safe for concurrent use: one process serves many
// calls through a single shared provider instance.
package tts

import (
	"context"
	"sync"
)

// Well-known filler keys every provider caches during Warmup.
const (
	FillerThinking = "thinking"
	FillerChecking = "checking"
)

// DefaultFillerPhrases returns the Icelandic filler phrases synthesized into
// the cache at warmup. Callers may pass a modified copy to providers that
// accept a filler option.
func DefaultFillerPhrases() map[string]string {
	return map[string]string{
		FillerThinking: "Augnablik...",
		FillerChecking: "Ég er að athuga það...",
	}
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel (one per active call).
type Provider interface {
	// Synthesize converts a sentence of text to raw little-endian PCM16 mono
	// audio at the provider's native sample rate. An empty result with a nil
	// error is valid for empty input.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// OutputSampleRate reports the sample rate in Hz of audio returned by
	// Synthesize and FillerAudio. Constant for the provider's lifetime.
	OutputSampleRate() int

	// FillerAudio returns the pre-synthesized audio for a filler key, or nil
	// if the key was never cached. The cache is immutable after Warmup, so
	// the returned slice must not be modified.
	FillerAudio(key string) []byte

	// Warmup establishes the backend connection and populates the filler
	// cache. At minimum the "thinking" and "checking" keys are cached.
	// Individual filler failures are logged, not returned; only a failure to
	// reach the backend at all is an error.
	Warmup(ctx context.Context) error

	// Close releases provider resources. The provider must not be used after
	// Close returns.
	Close() error
}

// FillerCache is a concurrency-safe store of pre-synthesized filler audio.
// Providers fill it during Warmup and read it on the hot path; after warmup
// it is effectively immutable.
type FillerCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// Put stores audio under key, replacing any previous entry.
func (c *FillerCache) Put(key string, audio []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[key] = audio
}

// Get returns the audio cached under key, or nil if absent.
func (c *FillerCache) Get(key string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// Len reports the number of cached fillers.
func (c *FillerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all cached fillers.
func (c *FillerCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

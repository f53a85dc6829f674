// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (the OpenAI Whisper API or a
// local whisper.cpp model) and exposes batch transcription of a completed
// utterance. The session orchestrator segments caller speech itself, so the
// core pipeline only needs whole-utterance transcription; providers that can
// stream interim partials may add to this interface in their own package.
//
// Implementations must be safe for concurrent use. One provider instance is
// shared by every active call.
package stt

import "context"

// Result is a transcription of one complete utterance.
type Result struct {
	// Text is the transcribed speech content. Empty when the provider heard
	// nothing intelligible.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// IsFinal is always true for batch transcription and is kept so that a
	// streaming provider can reuse this type for interim results.
	IsFinal bool
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a complete utterance of 16 kHz mono PCM16 audio to
	// text. A transcription of silence returns a Result with empty Text and
	// a nil error; errors are reserved for transport and provider failures.
	Transcribe(ctx context.Context, pcm []byte) (Result, error)

	// Warmup primes the provider (TLS handshake, model load) so the first
	// real call does not pay cold-start latency. Called once at startup;
	// failures are logged by the caller and are not fatal.
	Warmup(ctx context.Context) error

	// Close releases transport resources. Calling Close more than once is safe.
	Close() error
}

// Package whisperapi provides an STT provider backed by the OpenAI Whisper
// API. Whisper has solid Icelandic coverage and needs no local GPU; the
// trade-off is one extra network round-trip per utterance.
package whisperapi

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/draumabilar/sunna/pkg/provider/stt"
)

const defaultLanguage = "is"

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the ISO-639-1 language code sent with each request.
// Defaults to "is" (Icelandic).
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithModel overrides the Whisper model identifier. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements stt.Provider using the OpenAI Whisper API.
// Safe for concurrent use; the underlying client is shared across calls.
type Provider struct {
	client   oai.Client
	model    string
	language string
	timeout  time.Duration
}

// New constructs a Whisper API Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisperapi: apiKey must not be empty")
	}
	p := &Provider{
		model:    "whisper-1",
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: p.timeout}))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements stt.Provider. The Whisper API only accepts container
// formats, so the raw PCM16 is wrapped in a WAV header before upload.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (stt.Result, error) {
	if len(pcm) == 0 {
		return stt.Result{IsFinal: true}, nil
	}

	wav := wrapWAV(pcm, sampleRate, 1)

	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model:    oai.AudioModel(p.model),
		File:     oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Language: oai.String(p.language),
	})
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisperapi: transcribe: %w", err)
	}

	return stt.Result{
		Text: resp.Text,
		// The JSON response format carries no confidence; report full
		// confidence for non-empty text so downstream logging stays useful.
		Confidence: nonEmptyConfidence(resp.Text),
		IsFinal:    true,
	}, nil
}

// Warmup implements stt.Provider. The Whisper API has no cheap ping, so
// warmup transcribes a short span of silence to establish the connection.
func (p *Provider) Warmup(ctx context.Context) error {
	silence := make([]byte, sampleRate/10*2) // 100 ms
	if _, err := p.Transcribe(ctx, silence); err != nil {
		return fmt.Errorf("whisperapi: warmup: %w", err)
	}
	slog.Info("whisper api warmed up", "model", p.model, "language", p.language)
	return nil
}

// Close implements stt.Provider. The shared HTTP client holds no resources
// that outlive its idle connections.
func (p *Provider) Close() error { return nil }

func nonEmptyConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	return 1
}

// Package gemini provides a TTS provider backed by Google Gemini speech
// generation.
//
// The gemini-2.5-flash-preview-tts model covers Icelandic and detects the
// language from the input text. It has no dedicated TTS endpoint; audio comes
// back as inline data from a generate-content request with the AUDIO response
// modality. The free tier rate-limits aggressively, so synthesis retries on
// quota errors with a linear backoff.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/draumabilar/sunna/pkg/provider/tts"
)

const (
	defaultModel = "gemini-2.5-flash-preview-tts"
	defaultVoice = "Kore"

	// outputRate is fixed by the API: inline audio is PCM16, 24 kHz, mono.
	outputRate = 24000

	maxRetries = 3
	retryDelay = 2 * time.Second
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithVoice selects one of the prebuilt voice names (e.g., "Kore", "Zephyr").
// Defaults to "Kore".
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithModel overrides the model identifier. Defaults to
// "gemini-2.5-flash-preview-tts".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithFillerPhrases replaces the phrases cached during Warmup.
func WithFillerPhrases(phrases map[string]string) Option {
	return func(p *Provider) { p.fillers = phrases }
}

// Provider implements tts.Provider using Gemini speech generation.
// Safe for concurrent use; the genai client is shared across calls.
type Provider struct {
	client  *genai.Client
	model   string
	voice   string
	fillers map[string]string

	cache tts.FillerCache
}

// New constructs a Gemini TTS Provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini tts: apiKey must not be empty")
	}
	p := &Provider{
		model:   defaultModel,
		voice:   defaultVoice,
		fillers: tts.DefaultFillerPhrases(),
	}
	for _, o := range opts {
		o(p)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini tts: create client: %w", err)
	}
	p.client = client
	return p, nil
}

// Synthesize implements tts.Provider. Quota errors and empty responses are
// retried up to maxRetries times before giving up.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		audio, err := p.generate(ctx, text)
		if err == nil {
			slog.Debug("gemini tts synthesized",
				"text_len", len(text),
				"audio_bytes", len(audio),
				"voice", p.voice,
				"attempt", attempt)
			return audio, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, fmt.Errorf("gemini tts: synthesize: %w", err)
		}
		wait := retryDelay * time.Duration(attempt)
		slog.Warn("gemini tts retrying", "attempt", attempt, "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("gemini tts: synthesize after %d attempts: %w", maxRetries, lastErr)
}

var errEmptyResponse = errors.New("empty response")

// generate performs one generate-content request and extracts the inline
// audio bytes.
func (p *Provider) generate(ctx context.Context, text string) ([]byte, error) {
	// Without an explicit read-aloud instruction the model sometimes answers
	// the text instead of speaking it.
	prompt := readAloudPrompt(text)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: p.voice},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errEmptyResponse
	}
	part := resp.Candidates[0].Content.Parts[0]
	if part.InlineData == nil || len(part.InlineData.Data) == 0 {
		return nil, errEmptyResponse
	}
	return part.InlineData.Data, nil
}

// OutputSampleRate implements tts.Provider.
func (p *Provider) OutputSampleRate() int { return outputRate }

// FillerAudio implements tts.Provider.
func (p *Provider) FillerAudio(key string) []byte { return p.cache.Get(key) }

// Warmup implements tts.Provider. Filler requests are paced one second apart
// because the free tier allows only ten requests per minute.
func (p *Provider) Warmup(ctx context.Context) error {
	if _, err := p.Synthesize(ctx, "Góðan daginn, velkomin."); err != nil {
		return fmt.Errorf("gemini tts: warmup: %w", err)
	}

	for key, phrase := range p.fillers {
		if err := sleep(ctx, time.Second); err != nil {
			return err
		}
		audio, err := p.Synthesize(ctx, phrase)
		if err != nil {
			slog.Error("gemini tts filler cache failed", "key", key, "error", err)
			continue
		}
		p.cache.Put(key, audio)
	}

	slog.Info("gemini tts warmed up",
		"voice", p.voice,
		"model", p.model,
		"fillers_cached", p.cache.Len())
	return nil
}

// Close implements tts.Provider.
func (p *Provider) Close() error {
	p.cache.Clear()
	return nil
}

// readAloudPrompt wraps text in an Icelandic read-this instruction.
func readAloudPrompt(text string) string {
	return "Segðu eftirfarandi texta á íslensku: " + text
}

// retryable reports whether a synthesis error is worth another attempt:
// quota exhaustion or an empty candidate list, both of which the API recovers
// from within seconds.
func retryable(err error) bool {
	if errors.Is(err, errEmptyResponse) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// sleep blocks for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package openai provides a TTS provider backed by the OpenAI speech API.
//
// The gpt-4o-mini-tts model handles Icelandic well and accepts a free-form
// instructions string that steers tone and pacing, which is how the agent
// keeps its warm receptionist register instead of a flat read-aloud voice.
package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/draumabilar/sunna/pkg/provider/tts"
)

const (
	defaultModel = "gpt-4o-mini-tts"
	defaultVoice = "nova"

	// outputRate is fixed by the API: pcm response format is 24 kHz,
	// 16-bit, mono.
	outputRate = 24000
)

// defaultInstructions tells the model how to speak, not what to say.
const defaultInstructions = "Talaðu íslensku. Þú ert Sunna, vingjarnleg kona sem svarar símanum hjá bílasölu. " +
	"Talaðu eins og þú sért að spjalla við vin í síma. Vertu náttúruleg, hlý og hress. " +
	"Ekki vera formleg eða vélræn. Talaðu á eðlilegum hraða."

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithVoice selects the voice identifier (e.g., "nova", "coral", "marin").
// Defaults to "nova".
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithModel overrides the speech model. Defaults to "gpt-4o-mini-tts".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithInstructions replaces the default Icelandic persona instructions.
func WithInstructions(instructions string) Option {
	return func(p *Provider) { p.instructions = instructions }
}

// WithFillerPhrases replaces the phrases cached during Warmup.
func WithFillerPhrases(phrases map[string]string) Option {
	return func(p *Provider) { p.fillers = phrases }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements tts.Provider using the OpenAI speech API.
// Safe for concurrent use.
type Provider struct {
	client       oai.Client
	model        string
	voice        string
	instructions string
	fillers      map[string]string
	timeout      time.Duration

	cache tts.FillerCache
}

// New constructs an OpenAI TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	p := &Provider{
		model:        defaultModel,
		voice:        defaultVoice,
		instructions: defaultInstructions,
		fillers:      tts.DefaultFillerPhrases(),
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

// Synthesize implements tts.Provider. It requests the raw pcm response format
// and returns the body bytes unmodified (PCM16 24 kHz mono).
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		Input:          text,
		Instructions:   oai.String(p.instructions),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}

	slog.Debug("openai tts synthesized",
		"text_len", len(text),
		"audio_bytes", len(audio),
		"voice", p.voice)
	return audio, nil
}

// OutputSampleRate implements tts.Provider.
func (p *Provider) OutputSampleRate() int { return outputRate }

// FillerAudio implements tts.Provider.
func (p *Provider) FillerAudio(key string) []byte { return p.cache.Get(key) }

// Warmup implements tts.Provider. A short test synthesis establishes the
// connection; each filler phrase is then synthesized into the cache. Filler
// failures are logged and skipped so one bad phrase cannot block startup.
func (p *Provider) Warmup(ctx context.Context) error {
	if _, err := p.Synthesize(ctx, "Halló."); err != nil {
		return fmt.Errorf("openai tts: warmup: %w", err)
	}

	for key, phrase := range p.fillers {
		audio, err := p.Synthesize(ctx, phrase)
		if err != nil {
			slog.Error("openai tts filler cache failed", "key", key, "error", err)
			continue
		}
		p.cache.Put(key, audio)
	}

	slog.Info("openai tts warmed up",
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

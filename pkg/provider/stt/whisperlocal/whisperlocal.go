// Package whisperlocal provides an STT provider backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// Intended for self-hosted deployments using a fine-tuned Icelandic Whisper
// checkpoint, which avoids per-utterance API latency and cost. The model is
// loaded once at startup and shared across all calls; each transcription
// creates its own whisper context because contexts are not thread-safe.
package whisperlocal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/draumabilar/sunna/pkg/provider/stt"
)

const defaultLanguage = "is"

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language code passed to whisper.cpp (e.g., "is",
// "en"). Defaults to "is".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements stt.Provider using a local whisper.cpp model.
type Provider struct {
	language string

	mu     sync.Mutex
	model  whisperlib.Model
	closed bool
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisperlocal: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisperlocal: load model %q: %w", modelPath, err)
	}
	p := &Provider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. It runs batch inference over the whole
// utterance using a fresh whisper context.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	if len(pcm) < 2 {
		return stt.Result{IsFinal: true}, nil
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisperlocal: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		return stt.Result{}, fmt.Errorf("whisperlocal: set language %q: %w", p.language, err)
	}

	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisperlocal: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisperlocal: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.Join(parts, " ")
	return stt.Result{
		Text:       text,
		Confidence: nonEmptyConfidence(text),
		IsFinal:    true,
	}, nil
}

// Warmup implements stt.Provider. Inference over a short silent buffer forces
// the model weights through the cache so the first caller utterance is fast.
func (p *Provider) Warmup(ctx context.Context) error {
	silence := make([]byte, 16000/10*2) // 100 ms at 16 kHz
	if _, err := p.Transcribe(ctx, silence); err != nil {
		return fmt.Errorf("whisperlocal: warmup: %w", err)
	}
	return nil
}

// Close releases the whisper model. Safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.model == nil {
		return nil
	}
	p.closed = true
	return p.model.Close()
}

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to [-1.0, 1.0], the format whisper.cpp expects. Any
// trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

func nonEmptyConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	return 1
}

package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/draumabilar/sunna/pkg/provider/chat"
	"github.com/draumabilar/sunna/pkg/provider/stt"
	"github.com/draumabilar/sunna/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// STTFactory constructs an STT provider from its config entry.
type STTFactory func(ctx context.Context, entry ProviderEntry) (stt.Provider, error)

// TTSFactory constructs a TTS provider from its config entry.
type TTSFactory func(ctx context.Context, entry ProviderEntry) (tts.Provider, error)

// ChatFactory constructs a chat provider from its config entry.
type ChatFactory func(ctx context.Context, entry ProviderEntry) (chat.Provider, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	stt  map[string]STTFactory
	tts  map[string]TTSFactory
	chat map[string]ChatFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:  make(map[string]STTFactory),
		tts:  make(map[string]TTSFactory),
		chat: make(map[string]ChatFactory),
	}
}

// RegisterSTT registers an STT provider factory under name. Subsequent calls
// with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterChat registers a chat provider factory under name.
func (r *Registry) RegisterChat(name string, factory ChatFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(ctx context.Context, entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Name.
func (r *Registry) CreateTTS(ctx context.Context, entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateChat instantiates a chat provider using the factory registered under
// entry.Name.
func (r *Registry) CreateChat(ctx context.Context, entry ProviderEntry) (chat.Provider, error) {
	r.mu.RLock()
	factory, ok := r.chat[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: chat/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// Package config provides the configuration schema, loader, provider
// registry, and tuning-file watcher for the Sunna voice agent.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler used for server logs.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader], with secrets overlaid from the
// environment by [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telephony TelephonyConfig `yaml:"telephony"`
	Providers ProvidersConfig `yaml:"providers"`
	Agent     AgentConfig     `yaml:"agent"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log output.
	LogFormat LogFormat `yaml:"log_format"`
}

// TelephonyConfig holds the carrier-facing settings of the call webhook and
// the per-call voice-activity tuning.
type TelephonyConfig struct {
	// BaseURL is the public http(s) origin of this service, used to build
	// the media-stream URL in webhook responses.
	BaseURL string `yaml:"base_url"`

	// AuthToken validates webhook signatures. Empty disables validation
	// (local development only).
	AuthToken string `yaml:"auth_token"`

	// SilenceThresholdMs is the trailing silence that ends an utterance.
	SilenceThresholdMs int `yaml:"silence_threshold_ms"`

	// EnergyThreshold is the mean mulaw frame energy below which a frame
	// counts as silent.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// BargeInFrames is the number of consecutive voiced frames that
	// interrupts agent speech.
	BargeInFrames int `yaml:"barge_in_frames"`
}

// SilenceThreshold returns the utterance-end silence window as a duration.
func (t TelephonyConfig) SilenceThreshold() time.Duration {
	return time.Duration(t.SilenceThresholdMs) * time.Millisecond
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named provider registered in the
// [Registry]. The fallback entries are optional; when named, the stage is
// wrapped in a failover group with the fallback as second choice.
type ProvidersConfig struct {
	STT  ProviderEntry `yaml:"stt"`
	TTS  ProviderEntry `yaml:"tts"`
	Chat ProviderEntry `yaml:"chat"`

	STTFallback ProviderEntry `yaml:"stt_fallback"`
	TTSFallback ProviderEntry `yaml:"tts_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g.,
	// "whisperapi", "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	// Usually injected from the environment rather than written in YAML.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.,
	// "claude-sonnet-4-5", "gpt-4o-mini-tts", a whisper model path).
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above (e.g., "voice", "language").
	Options map[string]any `yaml:"options"`
}

// Option returns the string value of a provider option key, or "" when the
// key is absent or not a string.
func (e ProviderEntry) Option(key string) string {
	v, ok := e.Options[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AgentConfig tunes the conversational behaviour of the agent. Everything in
// this block is hot-reloadable through the tuning watcher; changes apply to
// calls started after the reload.
type AgentConfig struct {
	// Persona is the system prompt.
	Persona string `yaml:"persona"`

	// Greeting is spoken when a call connects.
	Greeting string `yaml:"greeting"`

	// MaxTurns bounds per-call history before overflow summarization.
	MaxTurns int `yaml:"max_turns"`

	// ResponseTimeoutSeconds bounds one full chat turn, tool rounds
	// included.
	ResponseTimeoutSeconds int `yaml:"response_timeout_seconds"`

	// MaxTokens bounds each chat completion.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the chat sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// FillerPhrases maps filler keys ("thinking", "checking") to the
	// phrases pre-synthesized at warmup.
	FillerPhrases map[string]string `yaml:"filler_phrases"`

	// Abbreviations is the sentence-segmenter abbreviation set. Empty
	// selects the built-in Icelandic defaults.
	Abbreviations []string `yaml:"abbreviations"`
}

// ResponseTimeout returns the chat-turn bound as a duration.
func (a AgentConfig) ResponseTimeout() time.Duration {
	return time.Duration(a.ResponseTimeoutSeconds) * time.Second
}

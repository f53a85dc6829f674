package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Built-in defaults. The persona and greeting are the dealership defaults the
// agent ships with; deployments override them in the tuning file.
const (
	defaultListenAddr      = ":8080"
	defaultSilenceMs       = 800
	defaultEnergyThreshold = 10
	defaultBargeInFrames   = 10
	defaultMaxTurns        = 50
	defaultTimeoutSeconds  = 10
	defaultMaxTokens       = 300
	defaultTemperature     = 0.7

	defaultPersona = "Þú ert Sunna, símafulltrúi hjá bílaumboðinu Draumabílar. " +
		"Þú svarar alltaf á íslensku, stutt og skýrt, í mesta lagi tvær til þrjár setningar í einu. " +
		"Notaðu verkfærin til að leita í bílalager, bóka reynsluakstur, fletta upp opnunartímum " +
		"og áframsenda símtalið á starfsmann þegar þess þarf. Ekki giska á upplýsingar sem verkfærin geta sótt."

	defaultGreeting = "Draumabílar, góðan daginn. Þetta er Sunna, hvernig get ég aðstoðað?"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"stt":  {"whisperapi", "whisperlocal"},
	"tts":  {"openai", "gemini"},
	"chat": {"anthropic"},
}

// DefaultFillerPhrases returns the phrases pre-synthesized into the filler
// cache at warmup.
func DefaultFillerPhrases() map[string]string {
	return map[string]string{
		"thinking": "Augnablik...",
		"checking": "Ég er að athuga það...",
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration, used when no config file is
// given. Secrets still come from [ApplyEnv].
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field that has a built-in default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = defaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = LogText
	}

	if cfg.Telephony.SilenceThresholdMs == 0 {
		cfg.Telephony.SilenceThresholdMs = defaultSilenceMs
	}
	if cfg.Telephony.EnergyThreshold == 0 {
		cfg.Telephony.EnergyThreshold = defaultEnergyThreshold
	}
	if cfg.Telephony.BargeInFrames == 0 {
		cfg.Telephony.BargeInFrames = defaultBargeInFrames
	}

	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = "whisperapi"
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = "openai"
	}
	if cfg.Providers.Chat.Name == "" {
		cfg.Providers.Chat.Name = "anthropic"
	}

	if cfg.Agent.Persona == "" {
		cfg.Agent.Persona = defaultPersona
	}
	if cfg.Agent.Greeting == "" {
		cfg.Agent.Greeting = defaultGreeting
	}
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = defaultMaxTurns
	}
	if cfg.Agent.ResponseTimeoutSeconds == 0 {
		cfg.Agent.ResponseTimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = defaultMaxTokens
	}
	if cfg.Agent.Temperature == 0 {
		cfg.Agent.Temperature = defaultTemperature
	}
	if len(cfg.Agent.FillerPhrases) == 0 {
		cfg.Agent.FillerPhrases = DefaultFillerPhrases()
	}
}

// ApplyEnv overlays environment variables onto cfg. Environment values win
// over file values for secrets and deployment-specific settings, which keeps
// keys out of the tuning file.
func ApplyEnv(cfg *Config) error {
	var errs []error

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Server.LogFormat = LogFormat(v)
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Telephony.BaseURL = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Telephony.AuthToken = v
	}
	if v := os.Getenv("SILENCE_THRESHOLD_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SILENCE_THRESHOLD_MS %q is not an integer", v))
		} else {
			cfg.Telephony.SilenceThresholdMs = n
		}
	}
	if v := os.Getenv("MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_TURNS %q is not an integer", v))
		} else {
			cfg.Agent.MaxTurns = n
		}
	}
	if v := os.Getenv("RESPONSE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RESPONSE_TIMEOUT_SECONDS %q is not an integer", v))
		} else {
			cfg.Agent.ResponseTimeoutSeconds = n
		}
	}

	// Provider keys. Whisper API and OpenAI TTS share the OpenAI key.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		applyKey(&cfg.Providers.STT, "whisperapi", v)
		applyKey(&cfg.Providers.STTFallback, "whisperapi", v)
		applyKey(&cfg.Providers.TTS, "openai", v)
		applyKey(&cfg.Providers.TTSFallback, "openai", v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		applyKey(&cfg.Providers.TTS, "gemini", v)
		applyKey(&cfg.Providers.TTSFallback, "gemini", v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		applyKey(&cfg.Providers.Chat, "anthropic", v)
	}

	return errors.Join(errs...)
}

// applyKey sets the API key on entry when it names the given provider and no
// key is configured yet.
func applyKey(entry *ProviderEntry, name, key string) {
	if entry.Name == name && entry.APIKey == "" {
		entry.APIKey = key
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	if cfg.Telephony.BaseURL != "" {
		u, err := url.Parse(cfg.Telephony.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("telephony.base_url %q must be an http(s) origin", cfg.Telephony.BaseURL))
		}
	}
	if cfg.Telephony.SilenceThresholdMs < 100 {
		errs = append(errs, fmt.Errorf("telephony.silence_threshold_ms %d is below the 100 ms floor", cfg.Telephony.SilenceThresholdMs))
	}
	if cfg.Telephony.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("telephony.energy_threshold %.1f must not be negative", cfg.Telephony.EnergyThreshold))
	}
	if cfg.Telephony.BargeInFrames < 1 {
		errs = append(errs, fmt.Errorf("telephony.barge_in_frames %d must be at least 1", cfg.Telephony.BargeInFrames))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("chat", cfg.Providers.Chat.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("tts", cfg.Providers.TTSFallback.Name)

	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STTFallback.Name == cfg.Providers.STT.Name {
		slog.Warn("stt fallback names the same provider as the primary",
			"name", cfg.Providers.STT.Name)
	}
	if cfg.Providers.TTSFallback.Name != "" && cfg.Providers.TTSFallback.Name == cfg.Providers.TTS.Name {
		slog.Warn("tts fallback names the same provider as the primary",
			"name", cfg.Providers.TTS.Name)
	}

	if cfg.Agent.MaxTurns < 3 {
		errs = append(errs, fmt.Errorf("agent.max_turns %d must be at least 3", cfg.Agent.MaxTurns))
	}
	if cfg.Agent.ResponseTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("agent.response_timeout_seconds %d must be at least 1", cfg.Agent.ResponseTimeoutSeconds))
	}
	if cfg.Agent.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("agent.max_tokens %d must be at least 1", cfg.Agent.MaxTokens))
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature %.2f is out of range [0, 2]", cfg.Agent.Temperature))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

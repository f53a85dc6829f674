// Command sunna is the telephony voice agent server for the Draumabílar
// dealership.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/draumabilar/sunna/internal/app"
	"github.com/draumabilar/sunna/internal/config"
	"github.com/draumabilar/sunna/internal/observe"
	"github.com/draumabilar/sunna/internal/resilience"
	"github.com/draumabilar/sunna/pkg/provider/chat"
	anthropicchat "github.com/draumabilar/sunna/pkg/provider/chat/anthropic"
	"github.com/draumabilar/sunna/pkg/provider/stt"
	"github.com/draumabilar/sunna/pkg/provider/stt/whisperapi"
	"github.com/draumabilar/sunna/pkg/provider/stt/whisperlocal"
	"github.com/draumabilar/sunna/pkg/provider/tts"
	geminitts "github.com/draumabilar/sunna/pkg/provider/tts/gemini"
	openaitts "github.com/draumabilar/sunna/pkg/provider/tts/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch-config", false, "reload agent tuning when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	var cfg *config.Config
	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "sunna: config file %q not found, using built-in defaults\n", *configPath)
		cfg = config.Default()
	} else {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sunna: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "sunna: %v\n", err)
		return 1
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "sunna: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	logger := newLogger(cfg.Server.LogLevel, cfg.Server.LogFormat, level)
	slog.SetDefault(logger)

	slog.Info("sunna starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Agent.FillerPhrases)

	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "error", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(cfg, providers, app.WithLogLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "error", err)
		return 1
	}

	// ── Warmup ────────────────────────────────────────────────────────────────
	// Warmup failure is not fatal: the first caller pays the cold start
	// instead, and /readyz surfaces the unhealthy provider.
	warmupCtx, cancelWarmup := context.WithTimeout(ctx, 30*time.Second)
	if err := application.Warmup(warmupCtx); err != nil {
		slog.Warn("provider warmup incomplete", "error", err)
	}
	cancelWarmup()

	// ── Tuning watcher ────────────────────────────────────────────────────────
	if *watch {
		watcher, err := config.NewWatcher(*configPath, application.ApplyTuning)
		if err != nil {
			slog.Warn("config watcher disabled", "error", err)
		} else {
			defer watcher.Stop()
			slog.Info("watching config file for tuning changes", "path", *configPath)
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "error", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real adapter packages. fillers is pre-rendered by the TTS adapters
// at warmup.
func registerBuiltinProviders(reg *config.Registry, fillers map[string]string) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisperapi", func(_ context.Context, entry config.ProviderEntry) (stt.Provider, error) {
		opts := []whisperapi.Option{whisperapi.WithLanguage(languageOption(entry))}
		if entry.Model != "" {
			opts = append(opts, whisperapi.WithModel(entry.Model))
		}
		return whisperapi.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisperlocal", func(_ context.Context, entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.Option("model_path")
		}
		opts := []whisperlocal.Option{whisperlocal.WithLanguage(languageOption(entry))}
		return whisperlocal.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(_ context.Context, entry config.ProviderEntry) (tts.Provider, error) {
		opts := []openaitts.Option{openaitts.WithFillerPhrases(fillers)}
		if entry.Model != "" {
			opts = append(opts, openaitts.WithModel(entry.Model))
		}
		if voice := entry.Option("voice"); voice != "" {
			opts = append(opts, openaitts.WithVoice(voice))
		}
		if instructions := entry.Option("instructions"); instructions != "" {
			opts = append(opts, openaitts.WithInstructions(instructions))
		}
		return openaitts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("gemini", func(ctx context.Context, entry config.ProviderEntry) (tts.Provider, error) {
		opts := []geminitts.Option{geminitts.WithFillerPhrases(fillers)}
		if entry.Model != "" {
			opts = append(opts, geminitts.WithModel(entry.Model))
		}
		if voice := entry.Option("voice"); voice != "" {
			opts = append(opts, geminitts.WithVoice(voice))
		}
		return geminitts.New(ctx, entry.APIKey, opts...)
	})

	// ── Chat ──────────────────────────────────────────────────────────────────

	reg.RegisterChat("anthropic", func(_ context.Context, entry config.ProviderEntry) (chat.Provider, error) {
		var opts []anthropicchat.Option
		if entry.Model != "" {
			opts = append(opts, anthropicchat.WithModel(entry.Model))
		}
		return anthropicchat.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the providers named in cfg and wraps them in
// fallback groups when a fallback entry is configured.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	sttPrimary, err := reg.CreateSTT(ctx, cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = sttPrimary
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if fb := cfg.Providers.STTFallback; fb.Name != "" {
		fallback, err := reg.CreateSTT(ctx, fb)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewSTTFallback(sttPrimary, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, fallback)
		ps.STT = group
		slog.Info("stt fallback enabled", "primary", cfg.Providers.STT.Name, "fallback", fb.Name)
	}

	ttsPrimary, err := reg.CreateTTS(ctx, cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = ttsPrimary
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if fb := cfg.Providers.TTSFallback; fb.Name != "" {
		fallback, err := reg.CreateTTS(ctx, fb)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewTTSFallback(ttsPrimary, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, fallback)
		ps.TTS = group
		slog.Info("tts fallback enabled", "primary", cfg.Providers.TTS.Name, "fallback", fb.Name)
	}

	chatP, err := reg.CreateChat(ctx, cfg.Providers.Chat)
	if err != nil {
		return nil, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	ps.Chat = chatP
	slog.Info("provider created", "kind", "chat", "name", cfg.Providers.Chat.Name)

	return ps, nil
}

// languageOption returns the configured STT language, defaulting to
// Icelandic.
func languageOption(entry config.ProviderEntry) string {
	if lang := entry.Option("language"); lang != "" {
		return lang
	}
	return "is"
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Sunna — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("STT fallback", cfg.Providers.STTFallback.Name, cfg.Providers.STTFallback.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("TTS fallback", cfg.Providers.TTSFallback.Name, cfg.Providers.TTSFallback.Model)
	printProvider("Chat", cfg.Providers.Chat.Name, cfg.Providers.Chat.Model)
	if cfg.Telephony.AuthToken != "" {
		fmt.Printf("║  Webhook auth    : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Webhook auth    : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Max turns       : %-19d ║\n", cfg.Agent.MaxTurns)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, format config.LogFormat, lvl *slog.LevelVar) *slog.Logger {
	switch level {
	case config.LogDebug:
		lvl.Set(slog.LevelDebug)
	case config.LogWarn:
		lvl.Set(slog.LevelWarn)
	case config.LogError:
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Package app wires the voice agent's subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects providers, the chat
// driver, the conversation registry and the HTTP surface; Run serves until
// the context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithRegistry,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	chatdriver "github.com/draumabilar/sunna/internal/chat"
	"github.com/draumabilar/sunna/internal/config"
	"github.com/draumabilar/sunna/internal/conversation"
	"github.com/draumabilar/sunna/internal/health"
	"github.com/draumabilar/sunna/internal/httpapi"
	"github.com/draumabilar/sunna/internal/observe"
	"github.com/draumabilar/sunna/internal/telephony"
	"github.com/draumabilar/sunna/internal/tools"
	"github.com/draumabilar/sunna/pkg/provider/chat"
	"github.com/draumabilar/sunna/pkg/provider/stt"
	"github.com/draumabilar/sunna/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Populated by main.go
// via the config registry; fallback wrapping happens before the struct
// reaches New.
type Providers struct {
	STT  stt.Provider
	TTS  tts.Provider
	Chat chat.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	registry *conversation.Registry
	driver   *chatdriver.Driver
	metrics  *observe.Metrics
	api      *httpapi.Server
	server   *http.Server
	logLevel *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry injects a conversation registry instead of creating one from
// config.
func WithRegistry(r *conversation.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics injects a metrics bundle instead of building one from the
// global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the App the level var backing the process logger so
// tuning-file edits can adjust verbosity at runtime.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if providers.STT == nil || providers.TTS == nil || providers.Chat == nil {
		return nil, errors.New("app: stt, tts and chat providers are all required")
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	if a.registry == nil {
		a.registry = conversation.NewRegistry(cfg.Agent.MaxTurns)
	}

	executor := tools.NewExecutor()
	a.driver = chatdriver.New(providers.Chat, executor, tools.Catalog(),
		chatdriver.WithMaxTokens(cfg.Agent.MaxTokens),
		chatdriver.WithTemperature(cfg.Agent.Temperature),
		chatdriver.WithTimeout(cfg.Agent.ResponseTimeout()),
		chatdriver.WithAbbreviations(cfg.Agent.Abbreviations),
	)

	healthHandler := health.New(a.registry.Count,
		health.Checker{Name: "stt", Check: providers.STT.Warmup},
		health.Checker{Name: "tts", Check: providers.TTS.Warmup},
		health.Checker{Name: "chat", Check: providers.Chat.Warmup},
	)

	a.api = httpapi.New(httpapi.Config{
		BaseURL:   cfg.Telephony.BaseURL,
		AuthToken: cfg.Telephony.AuthToken,
		Session:   sessionConfig(cfg),
	}, telephony.Deps{
		STT:      providers.STT,
		TTS:      providers.TTS,
		Driver:   a.driver,
		Registry: a.registry,
		Metrics:  a.metrics,
	}, healthHandler)

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.closers = append(a.closers,
		providers.STT.Close,
		providers.TTS.Close,
		providers.Chat.Close,
	)

	return a, nil
}

// Handler returns the full HTTP route tree. Exposed for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Warmup establishes provider connections and pre-renders filler audio so the
// first call does not pay cold-start latency. Provider warmups run
// concurrently.
func (a *App) Warmup(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.providers.STT.Warmup(ctx) })
	g.Go(func() error { return a.providers.TTS.Warmup(ctx) })
	g.Go(func() error { return a.providers.Chat.Warmup(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: warmup: %w", err)
	}
	return nil
}

// ApplyTuning reacts to a tuning-file reload. Session-level settings apply to
// the next call; the log level changes immediately. Abbreviation and filler
// changes need a restart because the driver and the filler cache are built at
// startup, which the log line calls out.
func (a *App) ApplyTuning(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.PersonaChanged || d.GreetingChanged || d.TimingChanged {
		a.api.UpdateSession(sessionConfig(new))
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
	}
	if d.AbbreviationsChanged || d.FillersChanged {
		slog.Warn("abbreviation and filler changes take effect on restart")
	}

	slog.Info("tuning applied",
		"persona", d.PersonaChanged,
		"greeting", d.GreetingChanged,
		"timing", d.TimingChanged,
		"log_level", d.LogLevelChanged)
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.cfg.Server.ListenAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()

	slog.Info("sunna listening",
		"addr", ln.Addr().String(),
		"base_url", a.cfg.Telephony.BaseURL)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server and tears down providers in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_calls", a.registry.Count())

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "error", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// sessionConfig maps the loaded config onto per-call session settings.
func sessionConfig(cfg *config.Config) telephony.Config {
	return telephony.Config{
		Greeting:         cfg.Agent.Greeting,
		Persona:          cfg.Agent.Persona,
		SilenceThreshold: cfg.Telephony.SilenceThreshold(),
		EnergyThreshold:  cfg.Telephony.EnergyThreshold,
		BargeInFrames:    cfg.Telephony.BargeInFrames,
	}
}

// slogLevel maps a config log level onto slog's.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

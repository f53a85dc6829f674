package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/draumabilar/sunna/internal/config"
	"github.com/draumabilar/sunna/internal/observe"
	chatmock "github.com/draumabilar/sunna/pkg/provider/chat/mock"
	sttmock "github.com/draumabilar/sunna/pkg/provider/stt/mock"
	ttsmock "github.com/draumabilar/sunna/pkg/provider/tts/mock"
)

func testProviders() *Providers {
	return &Providers{
		STT:  &sttmock.Provider{},
		TTS:  &ttsmock.Provider{},
		Chat: &chatmock.Provider{},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNew_RequiresAllProviders(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, &Providers{STT: &sttmock.Provider{}}, WithMetrics(testMetrics(t)))
	if err == nil {
		t.Fatal("expected error with missing tts and chat providers")
	}
}

func TestNew_ServesHealthEndpoint(t *testing.T) {
	cfg := config.Default()
	a, err := New(cfg, testProviders(), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var got struct {
		Status      string `json:"status"`
		ActiveCalls int    `json:"active_calls"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	if got.Status != "ok" || got.ActiveCalls != 0 {
		t.Errorf("health = %+v, want ok with no active calls", got)
	}
}

func TestWarmup_TouchesAllProviders(t *testing.T) {
	cfg := config.Default()
	providers := testProviders()
	a, err := New(cfg, providers, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if providers.STT.(*sttmock.Provider).WarmupCalls != 1 {
		t.Error("stt provider not warmed")
	}
	if providers.TTS.(*ttsmock.Provider).WarmupCalls != 1 {
		t.Error("tts provider not warmed")
	}
	if providers.Chat.(*chatmock.Provider).WarmupCalls != 1 {
		t.Error("chat provider not warmed")
	}
}

func TestWarmup_PropagatesFailure(t *testing.T) {
	cfg := config.Default()
	providers := testProviders()
	providers.TTS = &ttsmock.Provider{WarmupErr: errors.New("voice model unavailable")}

	a, err := New(cfg, providers, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Warmup(context.Background()); err == nil {
		t.Fatal("expected warmup failure to propagate")
	}
}

func TestApplyTuning_AdjustsLogLevel(t *testing.T) {
	cfg := config.Default()
	level := new(slog.LevelVar)

	a, err := New(cfg, testProviders(), WithMetrics(testMetrics(t)), WithLogLevelVar(level))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tuned := config.Default()
	tuned.Server.LogLevel = config.LogDebug
	a.ApplyTuning(cfg, tuned)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
}

func TestShutdown_ClosesProvidersOnce(t *testing.T) {
	cfg := config.Default()
	providers := testProviders()
	a, err := New(cfg, providers, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	if got := providers.STT.(*sttmock.Provider).CloseCalls; got != 1 {
		t.Errorf("stt close calls = %d, want 1", got)
	}
	if got := providers.TTS.(*ttsmock.Provider).CloseCalls; got != 1 {
		t.Errorf("tts close calls = %d, want 1", got)
	}
	if got := providers.Chat.(*chatmock.Provider).CloseCalls; got != 1 {
		t.Errorf("chat close calls = %d, want 1", got)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"

	a, err := New(cfg, testProviders(), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the listener a moment, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

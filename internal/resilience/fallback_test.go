package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := NewFallbackGroup("whisperapi", "whisperapi", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisperlocal", "whisperlocal")

	var served string
	err := fg.Execute(func(v string) error {
		served = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if served != "whisperapi" {
		t.Fatalf("served = %q, want whisperapi", served)
	}
}

func TestFallbackGroup_PrimaryFailFallbackSuccess(t *testing.T) {
	fg := NewFallbackGroup("whisperapi", "whisperapi", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisperlocal", "whisperlocal")

	var served string
	err := fg.Execute(func(v string) error {
		if v == "whisperapi" {
			return errProviderDown
		}
		served = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if served != "whisperlocal" {
		t.Fatalf("served = %q, want whisperlocal", served)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("gemini", "gemini")

	err := fg.Execute(func(v string) error {
		return errProviderDown
	})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_CircuitBreakerSkipsOpenProvider(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	fg.AddFallback("gemini", "gemini")

	// Fail the primary enough to open its breaker.
	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(v string) error {
			if v == "openai" {
				return errProviderDown
			}
			return nil
		})
	}

	// The primary's breaker is now open, so calls go straight to the fallback.
	var served string
	err := fg.Execute(func(v string) error {
		served = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if served != "gemini" {
		t.Fatalf("served = %q, want gemini (openai circuit should be open)", served)
	}
}

func TestExecuteWithResult_Success(t *testing.T) {
	fg := NewFallbackGroup(24000, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("gemini", 24000)

	result, err := ExecuteWithResult(fg, func(rate int) (string, error) {
		return "halló frá openai", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "halló frá openai" {
		t.Fatalf("result = %q, want primary's synthesis", result)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("gemini", "gemini")

	result, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "openai" {
			return "", errProviderDown
		}
		return "halló frá gemini", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "halló frá gemini" {
		t.Fatalf("result = %q, want fallback's synthesis", result)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := ExecuteWithResult(fg, func(v string) (string, error) {
		return "", errProviderDown
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

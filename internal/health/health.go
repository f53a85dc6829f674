// Package health provides HTTP health and readiness check handlers.
//
// The package exposes two endpoints:
//
//   - /health — liveness probe; always returns 200 OK along with the number
//     of active calls, so a quick curl shows whether the agent is busy.
//   - /readyz — readiness probe; returns 200 only when all registered
//     [Checker] functions pass (configured providers reachable, etc.).
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and, for readiness, a "checks" map containing the result of each named
// checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "stt",
	// "chat"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status      string            `json:"status"`
	ActiveCalls *int              `json:"active_calls,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// Handler serves /health and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	activeCalls func() int
	checkers    []Checker
}

// New creates a [Handler]. activeCalls reports the number of live telephone
// sessions and may be nil, in which case the count is omitted from the
// liveness response. The checkers are evaluated sequentially on each /readyz
// request, in the order provided.
func New(activeCalls func() int, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{activeCalls: activeCalls, checkers: c}
}

// Health is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.activeCalls != nil {
		n := h.activeCalls()
		res.ActiveCalls = &n
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /health and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

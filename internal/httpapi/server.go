// Package httpapi wires the voice agent's HTTP surface: the carrier webhook
// that answers new calls with TwiML, the WebSocket endpoint carrying the
// bidirectional media stream, and the operational endpoints (health,
// readiness, Prometheus metrics).
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/draumabilar/sunna/internal/health"
	"github.com/draumabilar/sunna/internal/observe"
	"github.com/draumabilar/sunna/internal/telephony"
)

// Config holds the server-level settings for the HTTP API.
type Config struct {
	// BaseURL is the public http(s) origin the carrier reaches this service
	// on. It is used both to verify webhook signatures and to build the
	// media-stream URL in the TwiML response.
	BaseURL string

	// AuthToken is the carrier account auth token used to verify webhook
	// signatures. Empty disables verification (local development only).
	AuthToken string

	// Session configures every telephone session the server spawns.
	Session telephony.Config
}

// Server serves the webhook and media-stream endpoints.
type Server struct {
	cfg    Config
	deps   telephony.Deps
	health *health.Handler

	// session holds the current telephony.Config. It is read per new call and
	// swappable at runtime so tuning-file edits apply to the next call.
	session atomic.Value
}

// New creates a [Server]. health may be nil, in which case the health routes
// are not registered.
func New(cfg Config, deps telephony.Deps, h *health.Handler) *Server {
	s := &Server{cfg: cfg, deps: deps, health: h}
	s.session.Store(cfg.Session)
	return s
}

// UpdateSession replaces the session config used for calls accepted from now
// on. Calls already in flight keep their settings.
func (s *Server) UpdateSession(cfg telephony.Config) {
	s.session.Store(cfg)
}

// Handler returns the full route tree wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /incoming-call", s.handleIncomingCall)
	mux.HandleFunc("GET /media-stream/{callSID}", s.handleMediaStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}
	return observe.Middleware(s.deps.Metrics)(mux)
}

// handleIncomingCall answers the carrier's new-call webhook. After verifying
// the request signature it responds with TwiML that upgrades the call to a
// media stream on this host.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	// The carrier signs the public URL it requested, not whatever host the
	// request arrived on behind the proxy.
	requestURL := s.cfg.BaseURL + r.URL.RequestURI()
	signature := r.Header.Get("X-Twilio-Signature")
	if !telephony.ValidateSignature(s.cfg.AuthToken, requestURL, r.PostForm, signature) {
		slog.Warn("rejected webhook with bad signature", "url", requestURL)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	callSID := r.PostForm.Get("CallSid")
	if callSID == "" {
		callSID = uuid.NewString()
	}
	caller := r.PostForm.Get("Caller")
	if caller == "" {
		caller = r.PostForm.Get("From")
	}

	twiml, err := telephony.BuildStreamTwiML(s.cfg.BaseURL, callSID, caller)
	if err != nil {
		slog.Error("building twiml response", "call_sid", callSID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("incoming call", "call_sid", callSID, "caller", caller)

	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write([]byte(twiml)); err != nil {
		slog.Warn("writing twiml response", "call_sid", callSID, "error", err)
	}
}

// handleMediaStream upgrades to a WebSocket and runs one telephone session
// for the lifetime of the connection.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	callSID := r.PathValue("callSID")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "call_sid", callSID, "error", err)
		return
	}
	defer conn.CloseNow()

	sess := telephony.NewSession(&wsTransport{conn: conn}, callSID, s.deps,
		s.session.Load().(telephony.Config))
	sess.Run(r.Context())

	conn.Close(websocket.StatusNormalClosure, "call ended")
}

// wsTransport adapts a WebSocket connection to the session transport. Media
// stream messages are JSON, sent as text frames.
type wsTransport struct {
	conn *websocket.Conn
}

var _ telephony.Transport = (*wsTransport)(nil)

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

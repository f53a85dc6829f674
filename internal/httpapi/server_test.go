package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	chatdriver "github.com/draumabilar/sunna/internal/chat"
	"github.com/draumabilar/sunna/internal/conversation"
	"github.com/draumabilar/sunna/internal/health"
	"github.com/draumabilar/sunna/internal/observe"
	"github.com/draumabilar/sunna/internal/telephony"
	chatmock "github.com/draumabilar/sunna/pkg/provider/chat/mock"
	sttmock "github.com/draumabilar/sunna/pkg/provider/stt/mock"
	ttsmock "github.com/draumabilar/sunna/pkg/provider/tts/mock"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *ttsmock.Provider) {
	t.Helper()

	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 5760)}
	deps := telephony.Deps{
		STT:      &sttmock.Provider{},
		TTS:      ttsP,
		Driver:   chatdriver.New(&chatmock.Provider{}, nil, nil),
		Registry: conversation.NewRegistry(0),
		Metrics:  metrics,
	}

	srv := httptest.NewServer(New(cfg, deps, health.New(func() int { return 0 })).Handler())
	t.Cleanup(srv.Close)
	return srv, ttsP
}

// sign reproduces the carrier's webhook signature over the request URL and
// sorted form parameters.
func sign(token, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestIncomingCall_RespondsWithStreamTwiML(t *testing.T) {
	srv, _ := newTestServer(t, Config{
		BaseURL:   "https://sunna.example.com",
		AuthToken: "secret",
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("Caller", "+3545551234")

	req, err := http.NewRequest("POST", srv.URL+"/incoming-call",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature",
		sign("secret", "https://sunna.example.com/incoming-call", form))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /incoming-call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "wss://sunna.example.com/media-stream/CA123") {
		t.Errorf("twiml missing stream URL: %s", body)
	}
	if !strings.Contains(string(body), "+3545551234") {
		t.Errorf("twiml missing caller parameter: %s", body)
	}
}

func TestIncomingCall_RejectsBadSignature(t *testing.T) {
	srv, _ := newTestServer(t, Config{
		BaseURL:   "https://sunna.example.com",
		AuthToken: "secret",
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")

	req, err := http.NewRequest("POST", srv.URL+"/incoming-call",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /incoming-call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestIncomingCall_EmptyTokenSkipsVerification(t *testing.T) {
	srv, _ := newTestServer(t, Config{BaseURL: "https://sunna.example.com"})

	resp, err := http.PostForm(srv.URL+"/incoming-call", url.Values{
		"CallSid": {"CA9"},
		"From":    {"+3545550000"},
	})
	if err != nil {
		t.Fatalf("POST /incoming-call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a configured token", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	// Caller falls back to the From field.
	if !strings.Contains(string(body), "+3545550000") {
		t.Errorf("twiml missing caller from From field: %s", body)
	}
}

func TestMediaStream_SpeaksGreeting(t *testing.T) {
	srv, ttsP := newTestServer(t, Config{
		BaseURL: "https://sunna.example.com",
		Session: telephony.Config{Greeting: "Góðan daginn!"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/media-stream/CA55"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.CloseNow()

	start := `{"event":"start","start":{"streamSid":"MZ1","callSid":"CA55",` +
		`"customParameters":{"caller":"+3545551234"}}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(start)); err != nil {
		t.Fatalf("write start: %v", err)
	}

	// The greeting arrives as media frames followed by a playback mark.
	var sawMedia bool
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		ev, err := telephony.ParseEvent(data)
		if err != nil {
			t.Fatalf("parse outbound event: %v", err)
		}
		if ev.Event == telephony.EventMedia {
			sawMedia = true
			continue
		}
		if ev.Event == telephony.EventMark {
			break
		}
	}
	if !sawMedia {
		t.Error("no media frames before the playback mark")
	}
	if got := ttsP.Texts(); len(got) != 1 || got[0] != "Góðan daginn!" {
		t.Errorf("synthesized texts = %q, want the greeting", got)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("write stop: %v", err)
	}
}

func TestOperationalRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Config{BaseURL: "https://sunna.example.com"})

	for _, path := range []string{"/health", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	chatdriver "github.com/draumabilar/sunna/internal/chat"
	"github.com/draumabilar/sunna/internal/conversation"
	"github.com/draumabilar/sunna/internal/observe"
	"github.com/draumabilar/sunna/pkg/audio"
	"github.com/draumabilar/sunna/pkg/provider/stt"
	"github.com/draumabilar/sunna/pkg/provider/tts"
)

// State is the per-call agent state.
type State int32

// Session states. Transitions follow the call state machine: utterance end
// moves Listening to Processing, a spoken response moves Processing to
// Speaking, and the echoed playback mark (or barge-in) returns to Listening.
const (
	StateListening State = iota
	StateProcessing
	StateSpeaking
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Spoken fallbacks when a pipeline stage fails.
const (
	apologySTT  = "Afsakið, gætirðu endurtekið?"
	apologyChat = "Afsakið, augnablik."
)

// sttSampleRate is the wideband rate utterance audio is upsampled to before
// transcription.
const sttSampleRate = 16000

// errInterrupted aborts sentence consumption when the caller barges in.
var errInterrupted = errors.New("telephony: interrupted by caller")

// Transport is the bidirectional message stream carrying wire events.
// Implementations need not support concurrent writes; the session serializes
// them.
type Transport interface {
	// Read blocks until the next inbound message or transport close.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one outbound message.
	Write(ctx context.Context, data []byte) error
}

// Deps are the shared process-wide collaborators of a session.
type Deps struct {
	STT      stt.Provider
	TTS      tts.Provider
	Driver   *chatdriver.Driver
	Registry *conversation.Registry
	Metrics  *observe.Metrics
}

// Config tunes one session. Zero values select the defaults.
type Config struct {
	// Greeting is spoken once when the stream starts.
	Greeting string
	// Persona is the system prompt passed to the chat driver.
	Persona string
	// SilenceThreshold is the trailing-silence duration that ends an
	// utterance. Default 800 ms.
	SilenceThreshold time.Duration
	// EnergyThreshold is the mean mulaw energy below which a frame counts
	// as silent. Default 10.
	EnergyThreshold float64
	// BargeInFrames is the number of consecutive voiced frames that
	// triggers an interruption. Default 10 (~200 ms).
	BargeInFrames int
	// MinUtteranceBytes is the smallest buffer worth transcribing.
	// Default 480 (60 ms).
	MinUtteranceBytes int
}

func (c *Config) applyDefaults() {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 800 * time.Millisecond
	}
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = 10
	}
	if c.BargeInFrames <= 0 {
		c.BargeInFrames = 10
	}
	if c.MinUtteranceBytes <= 0 {
		c.MinUtteranceBytes = 480
	}
}

// task is the handle of the single in-flight pipeline goroutine.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session drives one call. The frame reader runs on the goroutine that calls
// [Session.Run]; pipeline work runs on a single concurrent task whose handle
// the session owns, so the reader never blocks on provider calls.
type Session struct {
	transport Transport
	deps      Deps
	cfg       Config

	callSID   string
	streamSID string
	caller    string

	state       atomic.Int32
	interrupted atomic.Bool

	// Frame-reader state, touched only from Run's goroutine.
	buffer        []byte
	hasSpeech     bool
	silenceStart  time.Time
	bargeInFrames int
	pipeline      *task
	markCounter   int
	playedMarks   map[string]struct{}

	// now is swappable for tests exercising the silence timer.
	now func() time.Time

	writeMu sync.Mutex
}

// NewSession creates a session for one media-stream connection. callSID may
// be empty; the start event (or a generated id) then supplies it.
func NewSession(transport Transport, callSID string, deps Deps, cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{
		transport:   transport,
		deps:        deps,
		cfg:         cfg,
		callSID:     callSID,
		playedMarks: make(map[string]struct{}),
		now:         time.Now,
	}
}

// State returns the current agent state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run reads wire events until the stream stops or the transport closes, then
// cleans up. It blocks for the lifetime of the call.
func (s *Session) Run(ctx context.Context) {
	defer s.cleanup(ctx)

	for {
		data, err := s.transport.Read(ctx)
		if err != nil {
			slog.Info("media stream disconnected", "call_sid", s.callSID, "error", err)
			return
		}

		ev, err := ParseEvent(data)
		if err != nil {
			slog.Warn("malformed media-stream message", "call_sid", s.callSID, "error", err)
			continue
		}

		switch ev.Event {
		case EventConnected:
			slog.Info("media stream connected", "call_sid", s.callSID)
		case EventStart:
			s.handleStart(ctx, ev)
		case EventMedia:
			s.handleMedia(ctx, ev)
		case EventMark:
			s.handleMark(ev)
		case EventStop:
			slog.Info("media stream stop", "call_sid", s.callSID)
			return
		default:
			slog.Debug("ignoring media-stream event", "call_sid", s.callSID, "event", ev.Event)
		}
	}
}

// handleStart captures stream identifiers, registers the conversation, and
// speaks the greeting.
func (s *Session) handleStart(ctx context.Context, ev Event) {
	if ev.Start != nil {
		s.streamSID = ev.Start.StreamSID
		s.caller = ev.Start.CustomParameters["caller"]
		if s.callSID == "" {
			s.callSID = ev.Start.CallSID
		}
	}
	if s.callSID == "" {
		s.callSID = uuid.NewString()
	}

	slog.Info("media stream start",
		"call_sid", s.callSID,
		"stream_sid", s.streamSID,
		"caller", s.caller)

	s.deps.Registry.GetOrCreate(s.callSID, s.caller)
	s.deps.Metrics.ActiveCalls.Add(ctx, 1)

	greeting := s.cfg.Greeting
	s.startTask(ctx, func(taskCtx context.Context) {
		if greeting != "" {
			s.speak(taskCtx, []string{greeting})
		}
	})
}

// handleMedia runs on every inbound frame (~20 ms) and must stay fast: it
// classifies the frame, updates VAD state, and either watches for barge-in or
// accumulates the utterance.
func (s *Session) handleMedia(ctx context.Context, ev Event) {
	frame, err := ev.Audio()
	if err != nil {
		slog.Warn("dropping undecodable media frame", "call_sid", s.callSID, "error", err)
		return
	}
	if len(frame) == 0 {
		return
	}

	silent := audio.IsSilence(frame, s.cfg.EnergyThreshold)
	now := s.now()

	switch s.State() {
	case StateSpeaking, StateProcessing:
		if silent {
			s.bargeInFrames = 0
			return
		}
		s.bargeInFrames++
		if s.bargeInFrames >= s.cfg.BargeInFrames {
			s.interrupt(ctx)
			s.bargeInFrames = 0
			// The interrupting speech opens the next utterance.
			s.buffer = append(s.buffer, frame...)
			s.silenceStart = time.Time{}
			s.hasSpeech = true
		}

	case StateListening:
		s.buffer = append(s.buffer, frame...)
		if !silent {
			s.hasSpeech = true
			s.silenceStart = time.Time{}
			return
		}
		if s.silenceStart.IsZero() {
			s.silenceStart = now
			return
		}
		if s.hasSpeech &&
			now.Sub(s.silenceStart) >= s.cfg.SilenceThreshold &&
			len(s.buffer) > s.cfg.MinUtteranceBytes {
			s.dispatchPipeline(ctx)
		}
	}
}

// handleMark records the echoed playback checkpoint; the final mark of an
// utterance moves Speaking back to Listening.
func (s *Session) handleMark(ev Event) {
	if ev.Mark == nil {
		return
	}
	s.playedMarks[ev.Mark.Name] = struct{}{}
	if s.State() == StateSpeaking {
		s.setState(StateListening)
	}
}

// dispatchPipeline snapshots the utterance buffer and spawns the pipeline
// task. The reader keeps running so barge-in stays live during processing.
func (s *Session) dispatchPipeline(ctx context.Context) {
	if s.State() == StateProcessing {
		return
	}

	utterance := make([]byte, len(s.buffer))
	copy(utterance, s.buffer)
	s.buffer = s.buffer[:0]
	s.silenceStart = time.Time{}
	s.hasSpeech = false

	s.setState(StateProcessing)
	s.deps.Metrics.Utterances.Add(ctx, 1)

	s.startTask(ctx, func(taskCtx context.Context) {
		s.runPipeline(taskCtx, utterance)
	})
}

// startTask runs fn as the session's single pipeline task. A previous task
// that is already unwinding is awaited first so at most one is ever live.
func (s *Session) startTask(ctx context.Context, fn func(context.Context)) {
	if s.pipeline != nil {
		<-s.pipeline.done
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.pipeline = t

	go func() {
		defer close(t.done)
		defer cancel()
		fn(taskCtx)
	}()
}

// interrupt handles barge-in: cancel the in-flight pipeline, await its
// unwind, flush queued playback at the transport, and reset to Listening.
func (s *Session) interrupt(ctx context.Context) {
	slog.Info("barge-in", "call_sid", s.callSID, "state", s.State())
	s.interrupted.Store(true)
	s.deps.Metrics.BargeIns.Add(ctx, 1)

	if s.pipeline != nil {
		s.pipeline.cancel()
		<-s.pipeline.done
		s.pipeline = nil
	}

	s.sendClear(ctx)
	s.setState(StateListening)
	s.buffer = s.buffer[:0]
	s.hasSpeech = false
}

// runPipeline executes STT, chat, and TTS for one utterance.
func (s *Session) runPipeline(ctx context.Context, utterance []byte) {
	start := time.Now()
	defer func() {
		// A pipeline that never reached Speaking returns the session to
		// Listening; after a spoken response the echoed mark does it.
		if s.State() == StateProcessing {
			s.setState(StateListening)
		}
	}()

	pcm := audio.MulawToPCM16(utterance, sttSampleRate)

	result, err := s.deps.STT.Transcribe(ctx, pcm)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("pipeline cancelled", "call_sid", s.callSID)
			return
		}
		slog.Error("stt failed", "call_sid", s.callSID, "error", err)
		s.deps.Metrics.RecordProviderError(ctx, "stt", "transcribe")
		s.speak(ctx, []string{apologySTT})
		return
	}

	transcript := strings.TrimSpace(result.Text)
	if transcript == "" {
		return
	}

	sttElapsed := time.Since(start)
	s.deps.Metrics.STTDuration.Record(ctx, sttElapsed.Seconds())
	slog.Info("transcript",
		"call_sid", s.callSID,
		"text", transcript,
		"confidence", result.Confidence,
		"stt_ms", sttElapsed.Milliseconds())

	if !s.interrupted.Load() {
		s.playFiller(ctx, tts.FillerThinking)
	}

	store := s.deps.Registry.GetOrCreate(s.callSID, s.caller)
	store.AddUser(transcript)

	s.interrupted.Store(false)

	chatStart := time.Now()
	var sentences []string
	full, err := s.deps.Driver.Respond(ctx, s.cfg.Persona, store.Messages(), func(sentence string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.interrupted.Load() {
			return errInterrupted
		}
		sentences = append(sentences, sentence)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errInterrupted) {
			slog.Info("pipeline cancelled", "call_sid", s.callSID)
			return
		}
		slog.Error("chat failed", "call_sid", s.callSID, "error", err)
		s.deps.Metrics.RecordProviderError(ctx, "chat", "stream")
		s.speak(ctx, []string{apologyChat})
		return
	}

	chatElapsed := time.Since(chatStart)
	s.deps.Metrics.ChatDuration.Record(ctx, chatElapsed.Seconds())
	slog.Info("chat response",
		"call_sid", s.callSID,
		"sentences", len(sentences),
		"chat_ms", chatElapsed.Milliseconds())

	if len(sentences) > 0 && !s.interrupted.Load() {
		// Cut the filler before real speech starts.
		s.sendClear(ctx)
		s.speak(ctx, sentences)
	}
	if full != "" {
		store.AddAssistant(full)
	}

	slog.Info("pipeline complete",
		"call_sid", s.callSID,
		"total_ms", time.Since(start).Milliseconds())
	s.deps.Metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
}

// speak synthesizes each sentence, transcodes it to 20 ms narrowband frames,
// and sends them in order. One playback mark follows the last frame of the
// whole response.
func (s *Session) speak(ctx context.Context, sentences []string) {
	s.setState(StateSpeaking)
	s.interrupted.Store(false)

	spoke := false
	for _, sentence := range sentences {
		if ctx.Err() != nil || s.interrupted.Load() {
			return
		}

		ttsStart := time.Now()
		pcm, err := s.deps.TTS.Synthesize(ctx, sentence)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("tts failed", "call_sid", s.callSID, "error", err, "text_len", len(sentence))
			s.deps.Metrics.RecordProviderError(ctx, "tts", "synthesize")
			continue
		}
		s.deps.Metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())

		if s.sendAudio(ctx, pcm) {
			spoke = true
		}
	}

	if spoke && ctx.Err() == nil && !s.interrupted.Load() {
		s.markCounter++
		s.sendMark(ctx, fmt.Sprintf("utt_%d", s.markCounter))
	}
}

// playFiller streams a pre-synthesized filler phrase, if the TTS cache holds
// one, to mask chat-model latency.
func (s *Session) playFiller(ctx context.Context, key string) {
	pcm := s.deps.TTS.FillerAudio(key)
	if len(pcm) == 0 {
		return
	}
	s.sendAudio(ctx, pcm)
}

// sendAudio transcodes wideband PCM to narrowband frames and writes them to
// the transport. Reports whether at least one frame was sent.
func (s *Session) sendAudio(ctx context.Context, pcm []byte) bool {
	if len(pcm) == 0 {
		return false
	}

	mulaw := audio.PCM16ToMulaw(pcm, s.deps.TTS.OutputSampleRate())
	frames := audio.Chunk(mulaw, audio.FrameMs, audio.TelephonyRate, 1)

	sent := false
	for _, frame := range frames {
		if ctx.Err() != nil || s.interrupted.Load() {
			return sent
		}
		data, err := MarshalMedia(s.streamSID, frame)
		if err != nil {
			slog.Error("encode media frame", "call_sid", s.callSID, "error", err)
			return sent
		}
		if err := s.send(ctx, data); err != nil {
			slog.Warn("send media frame", "call_sid", s.callSID, "error", err)
			return sent
		}
		sent = true
	}
	return sent
}

func (s *Session) sendMark(ctx context.Context, name string) {
	data, err := MarshalMark(s.streamSID, name)
	if err != nil {
		slog.Error("encode mark", "call_sid", s.callSID, "error", err)
		return
	}
	if err := s.send(ctx, data); err != nil {
		slog.Warn("send mark", "call_sid", s.callSID, "error", err)
	}
}

func (s *Session) sendClear(ctx context.Context) {
	data, err := MarshalClear(s.streamSID)
	if err != nil {
		slog.Error("encode clear", "call_sid", s.callSID, "error", err)
		return
	}
	if err := s.send(ctx, data); err != nil {
		slog.Warn("send clear", "call_sid", s.callSID, "error", err)
	}
}

// send serializes transport writes; the pipeline task and the frame reader
// both emit outbound messages.
func (s *Session) send(ctx context.Context, data []byte) error {
	if s.streamSID == "" {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.transport.Write(ctx, data)
}

// cleanup cancels any in-flight pipeline and releases the conversation.
func (s *Session) cleanup(ctx context.Context) {
	if s.pipeline != nil {
		s.pipeline.cancel()
		<-s.pipeline.done
		s.pipeline = nil
	}
	if s.callSID != "" {
		s.deps.Registry.Remove(s.callSID)
		s.deps.Metrics.ActiveCalls.Add(ctx, -1)
	}
	slog.Info("session cleanup", "call_sid", s.callSID, "stream_sid", s.streamSID)
}

// Package conversation holds per-call message history and the process-wide
// registry of active calls.
//
// A [Store] keeps the ordered user/assistant messages for one call plus call
// metadata. When the history outgrows the configured turn limit it is
// compacted around a textual summary so the chat-model context stays bounded
// on long calls. The [Registry] maps call ids to stores and is the only state
// shared across calls.
package conversation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/draumabilar/sunna/pkg/provider/chat"
)

// DefaultMaxTurns is the user-turn limit before history compaction.
const DefaultMaxTurns = 50

// summaryTailLen bounds the excerpt of the last message inside a summary.
const summaryTailLen = 100

// Store is the conversation history of a single call.
//
// Appends for one call arrive from that call's pipeline only, but the HTTP
// surface reads snapshots concurrently, so all access is mutex-guarded.
type Store struct {
	callSID string

	mu        sync.Mutex
	caller    string
	startedAt time.Time
	turnCount int
	messages  []chat.Message
	maxTurns  int
}

// NewStore creates an empty history for the given call.
func NewStore(callSID, caller string, maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		callSID:   callSID,
		caller:    caller,
		startedAt: time.Now(),
		maxTurns:  maxTurns,
	}
}

// CallSID returns the call identifier the store belongs to.
func (s *Store) CallSID() string { return s.callSID }

// TurnCount returns the number of user messages added so far. Compaction
// does not reduce it.
func (s *Store) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

// AddUser appends a caller message and increments the turn count. When the
// number of user messages exceeds the turn limit the history is compacted.
func (s *Store) AddUser(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, chat.Message{Role: chat.RoleUser, Text: text})
	s.turnCount++
	slog.Info("conversation user message",
		"call_sid", s.callSID,
		"turn", s.turnCount,
		"text_len", len(text))
	s.compactLocked()
}

// AddAssistant appends an agent message. Assistant messages do not count as
// turns.
func (s *Store) AddAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, chat.Message{Role: chat.RoleAssistant, Text: text})
	slog.Info("conversation assistant message",
		"call_sid", s.callSID,
		"text_len", len(text))
}

// Messages returns a snapshot of the history in provider order.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Summary describes the call so far in Icelandic: caller, user turns,
// elapsed minutes, and the tail of the latest message.
func (s *Store) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Store) summaryLocked() string {
	if len(s.messages) == 0 {
		return "Ekkert samtal hefur átt sér stað."
	}

	turns := 0
	for _, m := range s.messages {
		if m.Role == chat.RoleUser {
			turns++
		}
	}
	minutes := int(time.Since(s.startedAt).Minutes())
	last := s.messages[len(s.messages)-1].Text
	if len(last) > summaryTailLen {
		last = last[:summaryTailLen]
	}
	return fmt.Sprintf("Samtal við %s, %d umferðir á %d mínútum. Síðasta skilaboð: %s",
		s.caller, turns, minutes, last)
}

// compactLocked applies the sliding-window trim: keep the first two messages
// as anchor context and the most recent window, with a summary message in
// between. Caller must hold s.mu.
func (s *Store) compactLocked() {
	userCount := 0
	for _, m := range s.messages {
		if m.Role == chat.RoleUser {
			userCount++
		}
	}
	if userCount <= s.maxTurns {
		return
	}

	keepRecent := (s.maxTurns - 2) * 2
	if keepRecent < 4 {
		keepRecent = 4
	}
	if len(s.messages) <= 2+keepRecent {
		return
	}

	summary := chat.Message{
		Role: chat.RoleAssistant,
		Text: fmt.Sprintf("[Samantekt á fyrri hluta samtals: %s]", s.summaryLocked()),
	}

	compacted := make([]chat.Message, 0, 3+keepRecent)
	compacted = append(compacted, s.messages[:2]...)
	compacted = append(compacted, summary)
	compacted = append(compacted, s.messages[len(s.messages)-keepRecent:]...)
	s.messages = compacted

	slog.Info("conversation compacted",
		"call_sid", s.callSID,
		"new_length", len(s.messages))
}

// Cleanup logs aggregate call statistics and releases the history.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("conversation cleanup",
		"call_sid", s.callSID,
		"total_turns", s.turnCount,
		"duration_s", time.Since(s.startedAt).Seconds(),
		"message_count", len(s.messages))
	s.messages = nil
}

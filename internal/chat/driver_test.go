package chat

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/draumabilar/sunna/pkg/provider/chat"
	chatmock "github.com/draumabilar/sunna/pkg/provider/chat/mock"
)

// recordingRunner captures tool invocations and returns a fixed result.
type recordingRunner struct {
	mu     sync.Mutex
	calls  []string
	inputs []string
	result string
}

func (r *recordingRunner) Execute(_ context.Context, name string, input json.RawMessage) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.inputs = append(r.inputs, string(input))
	if r.result == "" {
		return "{}"
	}
	return r.result
}

func collect() (*[]string, func(string) error) {
	var out []string
	return &out, func(s string) error {
		out = append(out, s)
		return nil
	}
}

func TestRespondStreamsSentences(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{
		Scripts: [][]chat.StreamEvent{{
			{Type: chat.EventTextDelta, Text: "Góðan daginn! Hvernig "},
			{Type: chat.EventTextDelta, Text: "get ég aðstoðað þig?"},
			{Type: chat.EventMessageStop},
		}},
	}
	d := New(p, nil, nil)

	sentences, emit := collect()
	full, err := d.Respond(context.Background(), "persona", []chat.Message{{Role: chat.RoleUser, Text: "Halló"}}, emit)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Góðan daginn!", "Hvernig get ég aðstoðað þig?"}
	if !reflect.DeepEqual(*sentences, want) {
		t.Errorf("sentences = %q, want %q", *sentences, want)
	}
	if full != "Góðan daginn! Hvernig get ég aðstoðað þig?" {
		t.Errorf("full text = %q", full)
	}

	reqs := p.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider invoked %d times, want 1", len(reqs))
	}
	if reqs[0].System != "persona" {
		t.Errorf("system prompt = %q", reqs[0].System)
	}
}

func TestRespondToolLoop(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{
		Scripts: [][]chat.StreamEvent{
			{
				{Type: chat.EventTextDelta, Text: "Ég skal athuga það. "},
				{Type: chat.EventToolUseStart, ToolID: "tu_1", ToolName: "search_inventory"},
				{Type: chat.EventInputJSONDelta, PartialJSON: `{"fuel_`},
				{Type: chat.EventInputJSONDelta, PartialJSON: `type":"rafmagn"}`},
				{Type: chat.EventBlockStop},
				{Type: chat.EventMessageStop},
			},
			{
				{Type: chat.EventTextDelta, Text: "Við eigum þrjá rafbíla. "},
				{Type: chat.EventMessageStop},
			},
		},
	}
	runner := &recordingRunner{result: `{"count":3}`}
	d := New(p, runner, nil)

	sentences, emit := collect()
	full, err := d.Respond(context.Background(), "", []chat.Message{{Role: chat.RoleUser, Text: "Áttu rafbíl?"}}, emit)
	if err != nil {
		t.Fatal(err)
	}

	if want := []string{"Ég skal athuga það.", "Við eigum þrjá rafbíla."}; !reflect.DeepEqual(*sentences, want) {
		t.Errorf("sentences = %q, want %q", *sentences, want)
	}
	if full != "Ég skal athuga það. Við eigum þrjá rafbíla." {
		t.Errorf("full text = %q", full)
	}

	if !reflect.DeepEqual(runner.calls, []string{"search_inventory"}) {
		t.Errorf("tool calls = %v", runner.calls)
	}
	if runner.inputs[0] != `{"fuel_type":"rafmagn"}` {
		t.Errorf("tool input = %q", runner.inputs[0])
	}

	reqs := p.Requests()
	if len(reqs) != 2 {
		t.Fatalf("provider invoked %d times, want 2", len(reqs))
	}
	second := reqs[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	assistant := second[1]
	if assistant.Role != chat.RoleAssistant || len(assistant.ToolUses) != 1 {
		t.Errorf("assistant tool-use message malformed: %+v", assistant)
	}
	toolMsg := second[2]
	if toolMsg.Role != chat.RoleUser || len(toolMsg.ToolResults) != 1 {
		t.Fatalf("tool-result message malformed: %+v", toolMsg)
	}
	if toolMsg.ToolResults[0].ToolUseID != "tu_1" || toolMsg.ToolResults[0].Content != `{"count":3}` {
		t.Errorf("tool result = %+v", toolMsg.ToolResults[0])
	}
}

func TestRespondMalformedToolInputDegradesToEmptyObject(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{
		Scripts: [][]chat.StreamEvent{
			{
				{Type: chat.EventToolUseStart, ToolID: "tu_1", ToolName: "get_business_hours"},
				{Type: chat.EventInputJSONDelta, PartialJSON: `{"day": `},
				{Type: chat.EventBlockStop},
				{Type: chat.EventMessageStop},
			},
			{
				{Type: chat.EventTextDelta, Text: "Opið til sex. "},
				{Type: chat.EventMessageStop},
			},
		},
	}
	runner := &recordingRunner{}
	d := New(p, runner, nil)

	_, emit := collect()
	if _, err := d.Respond(context.Background(), "", nil, emit); err != nil {
		t.Fatal(err)
	}
	if runner.inputs[0] != "{}" {
		t.Errorf("malformed input passed through as %q, want {}", runner.inputs[0])
	}
}

func TestRespondNoJSONAtAllDegradesToEmptyObject(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{
		Scripts: [][]chat.StreamEvent{
			{
				{Type: chat.EventToolUseStart, ToolID: "tu_1", ToolName: "get_business_hours"},
				{Type: chat.EventBlockStop},
				{Type: chat.EventMessageStop},
			},
			{{Type: chat.EventMessageStop}},
		},
	}
	runner := &recordingRunner{}
	d := New(p, runner, nil)

	_, emit := collect()
	if _, err := d.Respond(context.Background(), "", nil, emit); err != nil {
		t.Fatal(err)
	}
	if runner.inputs[0] != "{}" {
		t.Errorf("empty input passed through as %q, want {}", runner.inputs[0])
	}
}

func TestRespondStreamError(t *testing.T) {
	t.Parallel()

	streamErr := errors.New("rate limited")
	p := &chatmock.Provider{
		Scripts: [][]chat.StreamEvent{{
			{Type: chat.EventTextDelta, Text: "Hálfkláruð "},
			{Type: chat.EventError, Err: streamErr},
		}},
	}
	d := New(p, nil, nil)

	_, emit := collect()
	if _, err := d.Respond(context.Background(), "", nil, emit); !errors.Is(err, streamErr) {
		t.Fatalf("Respond error = %v, want %v", err, streamErr)
	}
}

func TestRespondEmitErrorAborts(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{
		Scripts: [][]chat.StreamEvent{{
			{Type: chat.EventTextDelta, Text: "Fyrsta setning. Önnur setning. "},
			{Type: chat.EventMessageStop},
		}},
	}
	d := New(p, nil, nil)

	abort := errors.New("playback cancelled")
	calls := 0
	_, err := d.Respond(context.Background(), "", nil, func(string) error {
		calls++
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("Respond error = %v, want %v", err, abort)
	}
	if calls != 1 {
		t.Errorf("emit called %d times after abort, want 1", calls)
	}
}

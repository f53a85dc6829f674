// Package telephony implements the per-call media-stream session: the wire
// event codec, the Listening/Processing/Speaking state machine with barge-in,
// the utterance pipeline, and the signaling glue that connects an inbound
// call to its WebSocket stream.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Wire event names, inbound and outbound.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// Event is one JSON message on the media-stream WebSocket. Only the payload
// matching Event is populated.
type Event struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload carries the stream identifiers and the custom parameters the
// signaling glue forwarded from the call webhook.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

// MediaPayload carries one frame of base64-encoded mulaw audio.
type MediaPayload struct {
	Payload string `json:"payload"`
}

// MarkPayload names a playback checkpoint.
type MarkPayload struct {
	Name string `json:"name"`
}

// ParseEvent decodes one wire message.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("telephony: decode event: %w", err)
	}
	if ev.Event == "" {
		return Event{}, fmt.Errorf("telephony: event without type")
	}
	return ev, nil
}

// Audio returns the decoded mulaw bytes of a media event.
func (e Event) Audio() ([]byte, error) {
	if e.Media == nil || e.Media.Payload == "" {
		return nil, nil
	}
	audio, err := base64.StdEncoding.DecodeString(e.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("telephony: decode media payload: %w", err)
	}
	return audio, nil
}

// MarshalMedia builds an outbound media message carrying one mulaw frame.
func MarshalMedia(streamSID string, frame []byte) ([]byte, error) {
	return json.Marshal(Event{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	})
}

// MarshalMark builds an outbound playback-mark message.
func MarshalMark(streamSID, name string) ([]byte, error) {
	return json.Marshal(Event{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkPayload{Name: name},
	})
}

// MarshalClear builds the message instructing the transport to discard all
// queued outbound audio.
func MarshalClear(streamSID string) ([]byte, error) {
	return json.Marshal(Event{
		Event:     EventClear,
		StreamSID: streamSID,
	})
}

package source

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/nhle/notifeed/internal/model"
)

// Envelope is a push channel message. Transports that tag their messages
// set Source; untagged messages leave it empty and are classified by shape.
type Envelope struct {
	Event   string          `json:"event"`
	Source  string          `json:"source,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses a raw push frame. Only a frame carrying a
// "payload" member next to an "event" or "source" member is unwrapped;
// anything else is treated as a bare, untagged payload.
func DecodeEnvelope(event string, data []byte) (Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Envelope{}, fmt.Errorf("push frame is not a JSON object")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Envelope{}, fmt.Errorf("decoding push frame: %w", err)
	}

	if !isEnvelope(probe) {
		return Envelope{Event: event, Payload: json.RawMessage(data)}, nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding push envelope: %w", err)
	}
	if env.Event == "" {
		env.Event = event
	}
	return env, nil
}

func isEnvelope(members map[string]json.RawMessage) bool {
	if _, ok := members["payload"]; !ok {
		return false
	}
	_, hasEvent := members["event"]
	_, hasSource := members["source"]
	return hasEvent || hasSource
}

// shapeProbe captures just the members the classification heuristic needs.
type shapeProbe struct {
	Sender     json.RawMessage `json:"sender"`
	Discussion json.RawMessage `json:"discussion"`
}

// Classify guesses the source of an untagged payload: one carrying both a
// sender and a discussion reference is forum-sourced, anything else is
// system-sourced. The adapter's TranslatePush still rejects payloads that
// do not match its required shape.
func Classify(payload []byte) model.Source {
	var p shapeProbe
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.SourceSystem
	}
	if present(p.Sender) && present(p.Discussion) {
		return model.SourceForum
	}
	return model.SourceSystem
}

// present reports whether a raw member exists and is not JSON null.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

package events

import (
	"encoding/json"
	"time"
)

// Envelope is the frame exchanged with websocket clients in both directions.
// RequestID is chosen by the client and echoed back on the matching ack.
type Envelope struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"request_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals payload into an outbound frame of the given type.
func Encode(eventType, requestID string, payload interface{}) ([]byte, error) {
	env := Envelope{
		Type:       eventType,
		RequestID:  requestID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an inbound frame. The payload stays raw until the event
// type is known.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}

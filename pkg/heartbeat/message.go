package heartbeat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event names the liveness transition being reported.
type Event string

const (
	EventReady     Event = "ready"
	EventHeartbeat Event = "heartbeat"
)

// Message describes a liveness payload published over NATS.
type Message struct {
	Service     string        `json:"service"`
	Event       Event         `json:"event"`
	GeneratedAt time.Time     `json:"generated_at"`
	Interval    time.Duration `json:"interval"` // expected gap between heartbeats
	Host        string        `json:"host,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Marshal renders the message as JSON for transport.
func (m Message) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Unmarshal decodes and validates a liveness message. It is the decoder for
// subscribers of the liveness subjects, such as a nats-heartbeat monitor
// watching this process.
func Unmarshal(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, msg.Validate()
}

// Validate ensures required fields are present and well-formed.
func (m Message) Validate() error {
	if m.Service == "" {
		return errors.New("service is required")
	}
	switch m.Event {
	case EventReady, EventHeartbeat:
	default:
		return fmt.Errorf("unknown event %q", m.Event)
	}
	if m.GeneratedAt.IsZero() {
		return errors.New("generated_at is required")
	}
	if m.Interval <= 0 {
		return fmt.Errorf("interval must be >0, got %s", m.Interval)
	}
	return nil
}

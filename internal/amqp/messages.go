package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stacksight/internal/core"
)

// MessageVersion is bumped when the envelope changes shape.
const MessageVersion = 1

// EventMessage is the JSON envelope published for a domain event.
type EventMessage struct {
	ID        string     `json:"id"`
	Version   int        `json:"version"`
	Timestamp time.Time  `json:"timestamp"`
	Event     core.Event `json:"event"`
}

// NewEventMessage wraps ev with a fresh id. A zero OccurredAt is set to now.
func NewEventMessage(ev core.Event) *EventMessage {
	now := time.Now().UTC()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	return &EventMessage{
		ID:        uuid.NewString(),
		Version:   MessageVersion,
		Timestamp: now,
		Event:     ev,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and checks it carries an event type.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.Type == "" {
		return nil, errors.New("message has no event type")
	}
	if msg.Version > MessageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return &msg, nil
}

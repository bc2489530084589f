package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"findash/internal/core"
)

// EventVersion is the schema version of UploadEvent bodies.
const EventVersion = 1

var ErrMalformedEvent = errors.New("malformed upload event")

// UploadEvent announces the outcome of one upload attempt. It carries only
// metadata; financial rows never leave the web process.
type UploadEvent struct {
	Version   int               `json:"version"`
	Record    core.UploadRecord `json:"record"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewUploadEvent wraps an upload record in a versioned event.
func NewUploadEvent(rec core.UploadRecord) *UploadEvent {
	return &UploadEvent{
		Version:   EventVersion,
		Record:    rec,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *UploadEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadEventFromJSON decodes and sanity-checks an event body.
func UploadEventFromJSON(data []byte) (*UploadEvent, error) {
	var msg UploadEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch {
	case msg.Version != EventVersion:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEvent, msg.Version)
	case msg.Record.ID == "":
		return nil, fmt.Errorf("%w: missing record id", ErrMalformedEvent)
	case msg.Record.Outcome != core.OutcomeAccepted && msg.Record.Outcome != core.OutcomeRejected:
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrMalformedEvent, msg.Record.Outcome)
	}
	return &msg, nil
}

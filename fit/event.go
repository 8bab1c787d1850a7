package fit

import (
	"context"

	"github.com/google/uuid"
)

// EventType names a notification sent to the caller.
type EventType string

const (
	EventLayoutDetected  EventType = "layout-detected"
	EventFillComplete    EventType = "fill-complete"
	EventIterationUpdate EventType = "iteration-update"
	EventAutoFitComplete EventType = "auto-fit-complete"
	EventAPIKeySaved     EventType = "api-key-saved"
	EventError           EventType = "error"
)

// Event is a one-way notification. Data holds one of the payload types below
// for the event types that carry one; error events use Message instead.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"runId"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

type IterationUpdate struct {
	Iteration int `json:"iteration"`
}

type FillComplete struct {
	Overflow        float64 `json:"overflow"`
	NeedsAdjustment bool    `json:"needsAdjustment"`
}

type AutoFitComplete struct {
	Iterations int     `json:"iterations"`
	Overflow   float64 `json:"overflow"`
	MaxReached bool    `json:"maxReached,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ErrorEvent builds the error notification for err.
func ErrorEvent(runID string, err error) Event {
	return Event{Type: EventError, RunID: runID, Message: err.Error()}
}

// Emit delivers ev on events. A nil channel drops the event; otherwise Emit
// blocks until the receiver takes it or ctx ends. A channel with room always
// takes the event, even after ctx has ended.
func Emit(ctx context.Context, events chan<- Event, ev Event) bool {
	if events == nil {
		return false
	}
	select {
	case events <- ev:
		return true
	default:
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

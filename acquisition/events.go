package acquisition

import "time"

// EventKind discriminates progress events.
type EventKind string

const (
	// EventStepCompleted is emitted after each step's frame is handed to the
	// save dispatcher.
	EventStepCompleted EventKind = "step_completed"

	// EventWarning is a non-fatal problem, currently only secondary save
	// failures.
	EventWarning EventKind = "warning"

	// EventCompleted, EventAborted, and EventFailed are terminal; exactly one
	// of them ends every event stream.
	EventCompleted EventKind = "completed"
	EventAborted   EventKind = "aborted"
	EventFailed    EventKind = "failed"
)

// Event is one entry in a run's progress stream.
type Event struct {
	Kind EventKind `json:"kind"`

	// Index is the plan index for step events, -1 otherwise.
	Index int `json:"index"`

	// Step is set for step events.
	Step *Step `json:"step,omitempty"`

	// Message carries warning or failure detail.
	Message string `json:"message,omitempty"`

	Time time.Time `json:"time"`
}

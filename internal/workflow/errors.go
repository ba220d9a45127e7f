package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownType is returned for a workflow type with no registered actions.
	ErrUnknownType = errors.New("unknown workflow type")
	// ErrNotFound is returned when a workflow id is not running or not stored.
	ErrNotFound = errors.New("workflow not found")
	// ErrDuplicateAction is returned when a workflow type declares an action twice.
	ErrDuplicateAction = errors.New("duplicate action")
	// ErrDuplicateType is returned when a workflow type is registered twice.
	ErrDuplicateType = errors.New("workflow type already registered")
	// ErrAlreadyRunning is returned when Run is called for an id that is in flight.
	ErrAlreadyRunning = errors.New("workflow already running")
	// ErrNoResult is returned by State.Result for a missing key.
	ErrNoResult = errors.New("no such result")
	// ErrNoStore is returned by Resume when the engine has no Store.
	ErrNoStore = errors.New("engine has no store")
)

// ActionError records one failed action. It is plain data so it survives
// serialization with the State.
type ActionError struct {
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	// Fatal is true when the failure stopped the workflow.
	Fatal bool `json:"fatal,omitempty"`
}

func (e ActionError) Error() string {
	return fmt.Sprintf("action %q: %s", e.Action, e.Message)
}

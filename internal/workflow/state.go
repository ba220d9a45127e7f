package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle position of a workflow instance.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further actions will run for this status.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusCompleted
}

// State is the mutable record of one workflow instance. It is plain data:
// Serialize/Deserialize round-trip it losslessly for resumption.
//
// A State is owned by the engine invocation running it; actions receive it
// exclusively for the duration of their call.
type State struct {
	WorkflowID       string                     `json:"workflow_id"`
	WorkflowType     string                     `json:"workflow_type"`
	Status           Status                     `json:"status"`
	CurrentAction    string                     `json:"current_action,omitempty"`
	CompletedActions []string                   `json:"completed_actions"`
	Errors           []ActionError              `json:"errors"`
	Results          map[string]json.RawMessage `json:"results"`
	Cancelled        bool                       `json:"cancelled,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`

	pauseRequested bool
}

// Success reports whether no action has failed.
func (s *State) Success() bool { return len(s.Errors) == 0 }

// RequestPause asks the engine to stop after the current action completes.
// The engine persists the state and reports StatusPaused.
func (s *State) RequestPause() { s.pauseRequested = true }

// SetResult stores v under key as JSON.
func (s *State) SetResult(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding result %q: %w", key, err)
	}
	if s.Results == nil {
		s.Results = make(map[string]json.RawMessage)
	}
	s.Results[key] = data
	return nil
}

// Result decodes the result stored under key into v.
//
// Postcondition: returns an error wrapping ErrNoResult when key is absent.
func (s *State) Result(key string, v any) error {
	data, ok := s.Results[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoResult, key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding result %q: %w", key, err)
	}
	return nil
}

// HasResult reports whether key is set.
func (s *State) HasResult(key string) bool {
	_, ok := s.Results[key]
	return ok
}

// attempted reports whether name has already run, successfully or not.
func (s *State) attempted(name string) bool {
	for _, a := range s.CompletedActions {
		if a == name {
			return true
		}
	}
	for _, e := range s.Errors {
		if e.Action == name {
			return true
		}
	}
	return false
}

// nextIndex returns the index of the first pending action: the one after the
// last declared action this state has attempted.
func (s *State) nextIndex(actions []ActionSpec) int {
	next := 0
	for i, a := range actions {
		if s.attempted(a.Name) {
			next = i + 1
		}
	}
	return next
}

// Serialize encodes st for external storage.
func Serialize(st *State) ([]byte, error) {
	if st == nil {
		return nil, errors.New("workflow: cannot serialize nil state")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("workflow: serializing %q: %w", st.WorkflowID, err)
	}
	return data, nil
}

// Deserialize decodes a State produced by Serialize.
//
// Postcondition: the returned state has a non-empty WorkflowID and WorkflowType.
func Deserialize(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("workflow: deserializing state: %w", err)
	}
	if st.WorkflowID == "" || st.WorkflowType == "" {
		return nil, errors.New("workflow: deserialized state lacks workflow_id or workflow_type")
	}
	if st.Results == nil {
		st.Results = make(map[string]json.RawMessage)
	}
	if st.Status == "" {
		st.Status = StatusIdle
	}
	return &st, nil
}

package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Store persists workflow state between actions so a paused or interrupted
// workflow can be resumed.
type Store interface {
	// Save writes st, replacing any previous state with the same id.
	Save(ctx context.Context, st *State) error
	// Load returns the state for id, or an error wrapping ErrNotFound.
	Load(ctx context.Context, id string) (*State, error)
	// Delete removes the state for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store. It keeps serialized bytes so loaded
// states never alias saved ones.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, st *State) error {
	data, err := Serialize(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[st.WorkflowID] = data
	m.mu.Unlock()
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	data, ok := m.states[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return Deserialize(data)
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.states, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored states.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

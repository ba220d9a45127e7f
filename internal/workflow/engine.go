// Package workflow sequences named actions per workflow type against a shared
// mutable State, isolating per-action failures into the state's error list.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine runs workflows registered in a Registry. One Engine may run many
// workflow instances concurrently; the only state it shares between them is
// the cancel flag map keyed by workflow id.
type Engine struct {
	registry *Registry
	store    Store
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	running map[string]*atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists state after every action and enables Resume.
func WithStore(s Store) Option { return func(e *Engine) { e.store = s } }

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDGenerator overrides workflow id generation.
func WithIDGenerator(fn func() string) Option { return func(e *Engine) { e.newID = fn } }

// NewEngine creates an Engine over registry.
//
// Precondition: registry must be non-nil.
func NewEngine(registry *Registry, opts ...Option) *Engine {
	if registry == nil {
		panic("workflow.NewEngine: registry must not be nil")
	}
	e := &Engine{
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		running:  make(map[string]*atomic.Bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry { return e.registry }

// NewState creates an idle State for workflowType.
//
// Postcondition: returns an error wrapping ErrUnknownType if the type is not registered.
func (e *Engine) NewState(workflowType string) (*State, error) {
	if _, ok := e.registry.Actions(workflowType); !ok {
		return nil, fmt.Errorf("workflow: %w: %q", ErrUnknownType, workflowType)
	}
	now := e.now()
	return &State{
		WorkflowID:       e.newID(),
		WorkflowType:     workflowType,
		Status:           StatusIdle,
		CompletedActions: []string{},
		Errors:           []ActionError{},
		Results:          make(map[string]json.RawMessage),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Start creates a State for workflowType, stores each seed value as a result,
// and runs it.
func (e *Engine) Start(ctx context.Context, workflowType string, seed map[string]any) (*State, error) {
	st, err := e.NewState(workflowType)
	if err != nil {
		return nil, err
	}
	for k, v := range seed {
		if err := st.SetResult(k, v); err != nil {
			return nil, fmt.Errorf("workflow: seeding %q: %w", workflowType, err)
		}
	}
	if err := e.Run(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

// Resume loads the state for id from the store and runs it from the next
// pending action.
//
// Postcondition: returns ErrNoStore without a store, or an error wrapping
// ErrNotFound when id is not stored.
func (e *Engine) Resume(ctx context.Context, id string) (*State, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	st, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("workflow: resuming %q: %w", id, err)
	}
	if err := e.Run(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

// Cancel marks the workflow id as cancelled. A running workflow stops at the
// next action boundary; a stored, non-terminal workflow is marked cancelled in
// the store.
//
// Postcondition: returns an error wrapping ErrNotFound when id is neither
// running nor stored.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	e.mu.Lock()
	flag, ok := e.running[id]
	e.mu.Unlock()
	if ok {
		flag.Store(true)
		return nil
	}
	if e.store == nil {
		return fmt.Errorf("workflow: cancel %q: %w", id, ErrNotFound)
	}
	st, err := e.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("workflow: cancel %q: %w", id, err)
	}
	if st.Status.Terminal() {
		return nil
	}
	st.Cancelled = true
	st.Status = StatusCancelled
	st.UpdatedAt = e.now()
	return e.store.Save(ctx, st)
}

// Running reports whether id is currently executing on this engine.
func (e *Engine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[id]
	return ok
}

func (e *Engine) track(id string) (*atomic.Bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.running[id]; ok {
		return nil, fmt.Errorf("workflow: %w: %q", ErrAlreadyRunning, id)
	}
	flag := &atomic.Bool{}
	e.running[id] = flag
	return flag, nil
}

func (e *Engine) untrack(id string) {
	e.mu.Lock()
	delete(e.running, id)
	e.mu.Unlock()
}

// Run executes st's pending actions in declared order.
//
// Action failures are recorded in st.Errors and never returned; a failing
// fatal action stops the workflow with StatusFailed. Run returns an error only
// when the workflow cannot be run (unknown type, already running), when ctx is
// cancelled, or when the store rejects a save.
//
// Precondition: st must be non-nil.
// Postcondition: st.Status is terminal, or StatusPaused after a pause request.
func (e *Engine) Run(ctx context.Context, st *State) error {
	if st == nil {
		return errors.New("workflow: run: nil state")
	}
	actions, ok := e.registry.Actions(st.WorkflowType)
	if !ok {
		return fmt.Errorf("workflow: %w: %q", ErrUnknownType, st.WorkflowType)
	}
	if st.Status.Terminal() {
		return nil
	}
	flag, err := e.track(st.WorkflowID)
	if err != nil {
		return err
	}
	defer e.untrack(st.WorkflowID)

	log := e.logger.With(
		zap.String("workflow_id", st.WorkflowID),
		zap.String("workflow_type", st.WorkflowType),
	)
	if st.Results == nil {
		st.Results = make(map[string]json.RawMessage)
	}
	st.Status = StatusRunning
	st.pauseRequested = false
	next := st.nextIndex(actions)
	log.Info("workflow started", zap.Int("next_action", next), zap.Int("actions", len(actions)))

	for i := next; i < len(actions); i++ {
		if flag.Load() || st.Cancelled {
			st.Cancelled = true
			st.Status = StatusCancelled
			log.Info("workflow cancelled", zap.Int("remaining_actions", len(actions)-i))
			return e.save(ctx, st)
		}
		if err := ctx.Err(); err != nil {
			st.Cancelled = true
			st.Status = StatusCancelled
			log.Info("workflow interrupted", zap.Error(err))
			if saveErr := e.save(context.WithoutCancel(ctx), st); saveErr != nil {
				return errors.Join(err, saveErr)
			}
			return err
		}

		a := actions[i]
		st.CurrentAction = a.Name
		log.Debug("running action", zap.String("action", a.Name))
		if err := invoke(ctx, a, st); err != nil {
			st.Errors = append(st.Errors, ActionError{
				Action:    a.Name,
				Message:   err.Error(),
				Timestamp: e.now(),
				Fatal:     a.Fatal,
			})
			log.Warn("action failed",
				zap.String("action", a.Name),
				zap.Bool("fatal", a.Fatal),
				zap.Error(err),
			)
			if a.Fatal {
				st.Status = StatusFailed
				return e.save(ctx, st)
			}
		} else {
			st.CompletedActions = append(st.CompletedActions, a.Name)
		}
		st.UpdatedAt = e.now()

		if st.pauseRequested && i < len(actions)-1 {
			st.pauseRequested = false
			st.Status = StatusPaused
			log.Info("workflow paused", zap.String("after_action", a.Name))
			return e.save(ctx, st)
		}
		if i < len(actions)-1 {
			if err := e.save(ctx, st); err != nil {
				return err
			}
		}
	}

	st.pauseRequested = false
	st.Status = StatusCompleted
	st.UpdatedAt = e.now()
	log.Info("workflow completed",
		zap.Bool("success", st.Success()),
		zap.Int("errors", len(st.Errors)),
	)
	return e.save(ctx, st)
}

func (e *Engine) save(ctx context.Context, st *State) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(ctx, st); err != nil {
		if !st.Status.Terminal() {
			st.Status = StatusFailed
		}
		return fmt.Errorf("workflow: saving %q: %w", st.WorkflowID, err)
	}
	return nil
}

// invoke runs one action, converting a panic into an error.
func invoke(ctx context.Context, a ActionSpec, st *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Fn(ctx, st)
}

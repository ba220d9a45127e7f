package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ActionFunc is one workflow step. A returned error is recorded as an
// ActionError; it does not abort the workflow unless the action is fatal.
type ActionFunc func(ctx context.Context, st *State) error

// ActionSpec binds an action name to its implementation.
type ActionSpec struct {
	Name string
	Fn   ActionFunc
	// Fatal stops the workflow with StatusFailed when the action fails.
	Fatal bool
}

// Registry maps workflow types to their ordered actions. Registrations are
// validated once; lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string][]ActionSpec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string][]ActionSpec)}
}

// Register declares the ordered actions for workflowType.
//
// Precondition: workflowType is non-empty; at least one action; names are
// non-empty and unique; every Fn is non-nil.
// Postcondition: returns nil and the type is registered, or an error and the
// registry is unchanged.
func (r *Registry) Register(workflowType string, actions ...ActionSpec) error {
	if err := validateActions(workflowType, actions); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[workflowType]; exists {
		return fmt.Errorf("workflow: %w: %q", ErrDuplicateType, workflowType)
	}
	r.types[workflowType] = append([]ActionSpec(nil), actions...)
	return nil
}

func validateActions(workflowType string, actions []ActionSpec) error {
	if workflowType == "" {
		return errors.New("workflow: type must not be empty")
	}
	if len(actions) == 0 {
		return fmt.Errorf("workflow: type %q declares no actions", workflowType)
	}
	seen := make(map[string]bool, len(actions))
	for i, a := range actions {
		if a.Name == "" {
			return fmt.Errorf("workflow: type %q action %d has no name", workflowType, i)
		}
		if a.Fn == nil {
			return fmt.Errorf("workflow: type %q action %q has no implementation", workflowType, a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("workflow: type %q: %w %q", workflowType, ErrDuplicateAction, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Actions returns a copy of the ordered actions for workflowType.
func (r *Registry) Actions(workflowType string) ([]ActionSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions, ok := r.types[workflowType]
	if !ok {
		return nil, false
	}
	return append([]ActionSpec(nil), actions...), true
}

// ActionNames returns the declared action names for workflowType.
func (r *Registry) ActionNames(workflowType string) []string {
	actions, _ := r.Actions(workflowType)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return names
}

// Types returns the registered workflow types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Bind registers every definition, resolving each action through catalog.
// An ActionDef's Use names the catalog entry; it defaults to Name.
//
// Postcondition: every definition is registered, or an error is returned and
// the registry is unchanged.
func (r *Registry) Bind(defs []Definition, catalog map[string]ActionFunc) error {
	bound := make(map[string][]ActionSpec, len(defs))
	for _, d := range defs {
		specs := make([]ActionSpec, 0, len(d.Actions))
		for _, a := range d.Actions {
			key := a.Use
			if key == "" {
				key = a.Name
			}
			fn, ok := catalog[key]
			if !ok {
				return fmt.Errorf("workflow: type %q action %q: no catalog entry %q", d.Type, a.Name, key)
			}
			specs = append(specs, ActionSpec{Name: a.Name, Fn: fn, Fatal: a.Fatal})
		}
		if err := validateActions(d.Type, specs); err != nil {
			return err
		}
		if _, dup := bound[d.Type]; dup {
			return fmt.Errorf("workflow: %w: %q", ErrDuplicateType, d.Type)
		}
		bound[d.Type] = specs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for typ := range bound {
		if _, exists := r.types[typ]; exists {
			return fmt.Errorf("workflow: %w: %q", ErrDuplicateType, typ)
		}
	}
	for typ, specs := range bound {
		r.types[typ] = specs
	}
	return nil
}

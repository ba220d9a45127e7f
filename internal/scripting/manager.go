package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rollflow/internal/game/dice"
	"github.com/cory-johannsen/rollflow/internal/workflow"
)

// ErrNoScript is returned when an action names a function no loaded script defines.
var ErrNoScript = errors.New("no such script function")

// Manager owns one sandboxed LState holding every loaded script and exposes
// the script functions as workflow actions.
//
// The LState is single-threaded; mu serializes all loads and calls.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	functions []string
	roller    dice.Randomizer
	logger    *zap.Logger
	instLimit int

	// Set for the duration of one action call.
	ctx   context.Context
	state *workflow.State
}

// NewManager creates a Manager with an empty VM.
//
// Precondition: roller and logger must be non-nil. instLimit <= 0 uses
// DefaultInstructionLimit.
func NewManager(roller dice.Randomizer, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	m := &Manager{roller: roller, logger: logger, instLimit: instLimit}
	m.L = m.newState()
	return m
}

func (m *Manager) newState() *lua.LState {
	L := NewSandboxedState()
	m.RegisterModules(L)
	return L
}

// LoadActions creates a fresh VM and executes every *.lua file in dir in
// lexicographic order. Every global Lua function the scripts define becomes
// available through Action and Catalog. On error the previous VM is kept.
//
// Precondition: dir must be a readable directory.
func (m *Manager) LoadActions(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L := m.newState()
	for _, path := range files {
		release := limitInstructions(context.Background(), L, m.instLimit)
		err := L.DoFile(path)
		release()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	var fns []string
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if fn, ok := v.(*lua.LFunction); ok && !fn.IsG {
			fns = append(fns, k.String())
		}
	})
	sort.Strings(fns)

	m.mu.Lock()
	old := m.L
	m.L = L
	m.functions = fns
	m.mu.Unlock()
	old.Close()

	m.logger.Info("scripts loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Strings("functions", fns),
	)
	return nil
}

// Functions returns the names of the loaded script functions, sorted.
func (m *Manager) Functions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.functions...)
}

// Catalog returns an action for every loaded script function.
func (m *Manager) Catalog() map[string]workflow.ActionFunc {
	out := make(map[string]workflow.ActionFunc)
	for _, name := range m.Functions() {
		out[name] = m.action(name)
	}
	return out
}

// Action returns the workflow action that calls the Lua global function name.
//
// Postcondition: returns an error wrapping ErrNoScript if name is not loaded.
func (m *Manager) Action(name string) (workflow.ActionFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn, ok := m.L.GetGlobal(name).(*lua.LFunction); !ok || fn.IsG {
		return nil, fmt.Errorf("scripting: %w: %q", ErrNoScript, name)
	}
	return m.action(name), nil
}

// action calls name with a table describing the workflow. A Lua error() or a
// `return false, msg` becomes the action's error.
func (m *Manager) action(name string) workflow.ActionFunc {
	return func(ctx context.Context, st *workflow.State) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		fn, ok := m.L.GetGlobal(name).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("scripting: %w: %q", ErrNoScript, name)
		}
		m.ctx, m.state = ctx, st
		defer func() { m.ctx, m.state = nil, nil }()

		info := m.L.NewTable()
		info.RawSetString("id", lua.LString(st.WorkflowID))
		info.RawSetString("type", lua.LString(st.WorkflowType))
		info.RawSetString("action", lua.LString(st.CurrentAction))

		release := limitInstructions(ctx, m.L, m.instLimit)
		err := m.L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, info)
		release()
		if err != nil {
			m.logger.Warn("scripting: Lua runtime error",
				zap.String("function", name),
				zap.String("workflow_id", st.WorkflowID),
				zap.Error(err),
			)
			return fmt.Errorf("script %q: %w", name, err)
		}
		status, msg := m.L.Get(-2), m.L.Get(-1)
		m.L.Pop(2)
		if status == lua.LFalse {
			if msg == lua.LNil {
				return fmt.Errorf("script %q failed", name)
			}
			return fmt.Errorf("script %q: %s", name, msg.String())
		}
		return nil
	}
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
	m.L = m.newState()
	m.functions = nil
}

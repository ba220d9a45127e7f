package scripting

import (
	"context"
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RegisterModules registers the rollflow table into L:
//
//	rollflow.roll(formula)  -> total, faces
//	rollflow.get(key)       -> value or nil
//	rollflow.set(key, v)
//	rollflow.pause()
//	rollflow.log.debug/info/warn(msg)
//
// get, set and pause raise a Lua error outside an action call.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"roll":  m.luaRoll,
		"get":   m.luaGet,
		"set":   m.luaSet,
		"pause": m.luaPause,
	})
	logTbl := L.NewTable()
	L.SetFuncs(logTbl, map[string]lua.LGFunction{
		"debug": m.luaLog(zap.DebugLevel),
		"info":  m.luaLog(zap.InfoLevel),
		"warn":  m.luaLog(zap.WarnLevel),
	})
	mod.RawSetString("log", logTbl)
	L.SetGlobal("rollflow", mod)
}

func (m *Manager) luaRoll(L *lua.LState) int {
	formula := L.CheckString(1)
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := m.roller.Evaluate(ctx, formula)
	if err != nil {
		L.RaiseError("rollflow.roll: %s", err.Error())
		return 0
	}
	faces := L.CreateTable(len(out.Dice), 0)
	for _, f := range out.Dice {
		ft := L.CreateTable(0, 3)
		ft.RawSetString("sides", lua.LNumber(f.Sides))
		ft.RawSetString("rolled", lua.LNumber(f.Rolled))
		ft.RawSetString("discarded", lua.LBool(f.Discarded))
		faces.Append(ft)
	}
	L.Push(lua.LNumber(out.Total))
	L.Push(faces)
	return 2
}

func (m *Manager) luaGet(L *lua.LState) int {
	key := L.CheckString(1)
	if m.state == nil {
		L.RaiseError("rollflow.get: no workflow in scope")
		return 0
	}
	raw, ok := m.state.Results[key]
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		L.RaiseError("rollflow.get %q: %s", key, err.Error())
		return 0
	}
	L.Push(toLua(L, v))
	return 1
}

func (m *Manager) luaSet(L *lua.LState) int {
	key := L.CheckString(1)
	if m.state == nil {
		L.RaiseError("rollflow.set: no workflow in scope")
		return 0
	}
	v, err := fromLua(L.Get(2))
	if err != nil {
		L.RaiseError("rollflow.set %q: %s", key, err.Error())
		return 0
	}
	if err := m.state.SetResult(key, v); err != nil {
		L.RaiseError("rollflow.set %q: %s", key, err.Error())
	}
	return 0
}

func (m *Manager) luaPause(L *lua.LState) int {
	if m.state == nil {
		L.RaiseError("rollflow.pause: no workflow in scope")
		return 0
	}
	m.state.RequestPause()
	return 0
}

func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		ce := m.logger.Check(level, msg)
		if ce == nil {
			return 0
		}
		fields := []zap.Field{zap.String("source", "lua")}
		if m.state != nil {
			fields = append(fields, zap.String("workflow_id", m.state.WorkflowID))
		}
		ce.Write(fields...)
		return 0
	}
}

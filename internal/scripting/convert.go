package scripting

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a JSON-decoded Go value into a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		t := L.CreateTable(len(x), 0)
		for _, e := range x {
			t.Append(toLua(L, e))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(x))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, toLua(L, x[k]))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// fromLua converts a Lua value into a JSON-encodable Go value. A table whose
// keys are exactly 1..n becomes a slice; any other table becomes a map with
// stringified keys. Integral numbers become int64.
func fromLua(v lua.LValue) (any, error) {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("number %v is not representable", f)
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(x), nil
	case *lua.LTable:
		return tableFromLua(x)
	default:
		return nil, fmt.Errorf("cannot convert Lua %s", v.Type())
	}
}

func tableFromLua(t *lua.LTable) (any, error) {
	n := t.MaxN()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			e, err := fromLua(t.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}

	out := make(map[string]any, count)
	var firstErr error
	t.ForEach(func(k, v lua.LValue) {
		if firstErr != nil {
			return
		}
		var key string
		switch kk := k.(type) {
		case lua.LString:
			key = string(kk)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kk), 'f', -1, 64)
		default:
			firstErr = fmt.Errorf("cannot use Lua %s as a key", k.Type())
			return
		}
		e, err := fromLua(v)
		if err != nil {
			firstErr = fmt.Errorf("key %q: %w", key, err)
			return
		}
		out[key] = e
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

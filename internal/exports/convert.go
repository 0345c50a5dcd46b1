package exports

import (
	"github.com/atlrp/server/internal/world"
	lua "github.com/yuin/gopher-lua"
)

func coordsToLua(L *lua.LState, c world.Coords) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(c.X))
	t.RawSetString("y", lua.LNumber(c.Y))
	t.RawSetString("z", lua.LNumber(c.Z))
	t.RawSetString("heading", lua.LNumber(c.Heading))
	return t
}

func jobToLua(L *lua.LState, j world.JobData) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(j.Name))
	t.RawSetString("rank", lua.LNumber(j.Rank))
	t.RawSetString("onDuty", lua.LBool(j.OnDuty))
	return t
}

func statusToLua(L *lua.LState, status map[string]world.StatusLevel) *lua.LTable {
	t := L.NewTable()
	for name, s := range status {
		row := L.NewTable()
		row.RawSetString("value", lua.LNumber(s.Value))
		t.RawSetString(name, row)
	}
	return t
}

// anyToLua converts decoded JSON values (maps, slices, scalars) into
// their Lua equivalents. Unsupported kinds become nil.
func anyToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case map[string]any:
		t := L.NewTable()
		for k, item := range x {
			t.RawSetString(k, anyToLua(L, item))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, item := range x {
			t.RawSetInt(i+1, anyToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// coordsFromLua reads a transform table. x, y and z must be numbers;
// heading is optional and defaults to 0.
func coordsFromLua(t *lua.LTable) (world.Coords, bool) {
	var c world.Coords
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"x", &c.X},
		{"y", &c.Y},
		{"z", &c.Z},
	} {
		n, ok := t.RawGetString(f.key).(lua.LNumber)
		if !ok {
			return world.Coords{}, false
		}
		*f.dst = float64(n)
	}
	switch h := t.RawGetString("heading").(type) {
	case lua.LNumber:
		c.Heading = float64(h)
	case *lua.LNilType:
	default:
		return world.Coords{}, false
	}
	return c, true
}

// statusFromLua reads a status map. Values may be plain numbers or
// tables carrying a numeric "value" field, matching both shapes scripts
// pass around.
func statusFromLua(t *lua.LTable) (map[string]float64, bool) {
	values := make(map[string]float64)
	ok := true
	t.ForEach(func(k, v lua.LValue) {
		name, isStr := k.(lua.LString)
		if !isStr {
			ok = false
			return
		}
		switch x := v.(type) {
		case lua.LNumber:
			values[string(name)] = float64(x)
		case *lua.LTable:
			n, isNum := x.RawGetString("value").(lua.LNumber)
			if !isNum {
				ok = false
				return
			}
			values[string(name)] = float64(n)
		default:
			ok = false
		}
	})
	if !ok {
		return nil, false
	}
	return values, true
}

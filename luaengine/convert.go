package luaengine

import (
	"fmt"
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/jonwraymond/toolscript/script"
)

// converter moves values across the Lua boundary and enforces the
// configured size caps while doing so.
type converter struct {
	maxString int
	maxArray  int
	maxMap    int
}

func newConverter(cfg script.EngineConfig) converter {
	return converter{
		maxString: cfg.MaxStringSize,
		maxArray:  cfg.MaxArraySize,
		maxMap:    cfg.MaxMapSize,
	}
}

func (c converter) checkString(n int) error {
	if c.maxString > 0 && n > c.maxString {
		return fmt.Errorf("%w: string length %d exceeds %d", script.ErrSizeLimit, n, c.maxString)
	}
	return nil
}

func (c converter) checkArray(n int) error {
	if c.maxArray > 0 && n > c.maxArray {
		return fmt.Errorf("%w: array length %d exceeds %d", script.ErrSizeLimit, n, c.maxArray)
	}
	return nil
}

func (c converter) checkMap(n int) error {
	if c.maxMap > 0 && n > c.maxMap {
		return fmt.Errorf("%w: map size %d exceeds %d", script.ErrSizeLimit, n, c.maxMap)
	}
	return nil
}

// toValue converts a Lua value into a script.Value.
//
// Tables whose keys are exactly 1..n become arrays (the empty table is an
// array); other tables become maps with stringified keys. Cyclic references
// become Other. Functions, userdata and threads become Other with their
// Lua text form.
func (c converter) toValue(lv lua.LValue) (script.Value, error) {
	return c.convert(lv, make(map[*lua.LTable]struct{}))
}

func (c converter) convert(lv lua.LValue, seen map[*lua.LTable]struct{}) (script.Value, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return script.Unit(), nil
	case lua.LBool:
		return script.Bool(bool(v)), nil
	case lua.LNumber:
		return numberValue(float64(v)), nil
	case lua.LString:
		if err := c.checkString(len(v)); err != nil {
			return script.Unit(), err
		}
		return script.String(string(v)), nil
	case *lua.LTable:
		if _, ok := seen[v]; ok {
			return script.Other("<cycle>"), nil
		}
		seen[v] = struct{}{}
		defer delete(seen, v)
		return c.convertTable(v, seen)
	default:
		return script.Other(lv.String()), nil
	}
}

func (c converter) convertTable(t *lua.LTable, seen map[*lua.LTable]struct{}) (script.Value, error) {
	n := t.Len()
	keys := 0
	t.ForEach(func(lua.LValue, lua.LValue) { keys++ })

	if keys == n {
		if err := c.checkArray(n); err != nil {
			return script.Unit(), err
		}
		elems := make([]script.Value, n)
		for i := 1; i <= n; i++ {
			e, err := c.convert(t.RawGetInt(i), seen)
			if err != nil {
				return script.Unit(), err
			}
			elems[i-1] = e
		}
		return script.Array(elems...), nil
	}

	if err := c.checkMap(keys); err != nil {
		return script.Unit(), err
	}
	fields := make(map[string]script.Value, keys)
	var convErr error
	t.ForEach(func(k, val lua.LValue) {
		if convErr != nil {
			return
		}
		e, err := c.convert(val, seen)
		if err != nil {
			convErr = err
			return
		}
		fields[keyString(k)] = e
	})
	if convErr != nil {
		return script.Unit(), convErr
	}
	return script.Map(fields), nil
}

// toLua converts a script.Value into a Lua value owned by L.
func (c converter) toLua(L *lua.LState, v script.Value) (lua.LValue, error) {
	switch v.Kind() {
	case script.KindUnit:
		return lua.LNil, nil
	case script.KindString, script.KindOther:
		if err := c.checkString(len(v.Str())); err != nil {
			return lua.LNil, err
		}
		return lua.LString(v.Str()), nil
	case script.KindInt:
		return lua.LNumber(v.Int64()), nil
	case script.KindFloat:
		return lua.LNumber(v.Float64()), nil
	case script.KindBool:
		return lua.LBool(v.Boolean()), nil
	case script.KindArray:
		elems := v.Elems()
		if err := c.checkArray(len(elems)); err != nil {
			return lua.LNil, err
		}
		t := L.CreateTable(len(elems), 0)
		for _, e := range elems {
			lv, err := c.toLua(L, e)
			if err != nil {
				return lua.LNil, err
			}
			t.Append(lv)
		}
		return t, nil
	case script.KindMap:
		fields := v.Fields()
		if err := c.checkMap(len(fields)); err != nil {
			return lua.LNil, err
		}
		t := L.CreateTable(0, len(fields))
		for k, e := range fields {
			lv, err := c.toLua(L, e)
			if err != nil {
				return lua.LNil, err
			}
			t.RawSetString(k, lv)
		}
		return t, nil
	}
	return lua.LNil, nil
}

func numberValue(f float64) script.Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return script.Int(int64(f))
	}
	return script.Float(f)
}

func keyString(k lua.LValue) string {
	switch kv := k.(type) {
	case lua.LString:
		return string(kv)
	case lua.LNumber:
		f := float64(kv)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return k.String()
	}
}

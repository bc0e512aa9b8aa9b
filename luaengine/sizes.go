package luaengine

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// concat implements a flattened concatenation chain. Strings and numbers
// are joined in one allocation after the cap check; anything else folds
// from the right through __concat.
func (e *Engine) concat(L *lua.LState) int {
	n := L.GetTop()
	size := 0
	plain := true
	for i := 1; i <= n; i++ {
		lv := L.Get(i)
		if !concatenable(lv) {
			plain = false
			break
		}
		size += len(lua.LVAsString(lv))
	}
	if !plain {
		acc := L.Get(n)
		for i := n - 1; i >= 1; i-- {
			acc = e.concatPair(L, L.Get(i), acc)
		}
		L.Push(acc)
		return 1
	}
	if err := e.conv.checkString(size); err != nil {
		e.raise(err)
		return 0
	}
	var b strings.Builder
	b.Grow(size)
	for i := 1; i <= n; i++ {
		b.WriteString(lua.LVAsString(L.Get(i)))
	}
	L.Push(lua.LString(b.String()))
	return 1
}

func (e *Engine) concatPair(L *lua.LState, a, b lua.LValue) lua.LValue {
	if concatenable(a) && concatenable(b) {
		as, bs := lua.LVAsString(a), lua.LVAsString(b)
		if err := e.conv.checkString(len(as) + len(bs)); err != nil {
			e.raise(err)
			return lua.LNil
		}
		return lua.LString(as + bs)
	}
	mm := L.GetMetaField(a, "__concat")
	if mm == lua.LNil {
		mm = L.GetMetaField(b, "__concat")
	}
	if mm == lua.LNil {
		bad := a
		if concatenable(a) {
			bad = b
		}
		L.RaiseError("attempt to concatenate a %s value", bad.Type().String())
		return lua.LNil
	}
	L.Push(mm)
	L.Push(a)
	L.Push(b)
	L.Call(2, 1)
	ret := L.Get(-1)
	L.Pop(1)
	return ret
}

func concatenable(lv lua.LValue) bool {
	t := lv.Type()
	return t == lua.LTString || t == lua.LTNumber
}

// store implements t[k] = v for rewritten chunks.
func (e *Engine) store(L *lua.LState) int {
	obj, key, val := L.Get(1), L.Get(2), L.Get(3)
	tb, ok := obj.(*lua.LTable)
	if !ok {
		L.SetTable(obj, key, val)
		return 0
	}
	had := tb.RawGet(key) != lua.LNil
	L.SetTable(tb, key, val)
	e.stored(tb, key, had)
	return 0
}

// stored applies the caps after key was written to tb.
//
// Keys inside the array part are checked against the array cap. Any other
// new key starts an entry count for tb, checked against the map cap; once
// counted, every insert and delete on tb keeps the count current.
func (e *Engine) stored(tb *lua.LTable, key lua.LValue, had bool) {
	has := tb.RawGet(key) != lua.LNil
	n, counted := e.entries[tb]
	switch {
	case counted && has && !had:
		n++
		e.entries[tb] = n
	case counted && had && !has:
		n--
		e.entries[tb] = n
	case !counted && has && !had && !inArray(tb, key):
		n = countEntries(tb)
		e.entries[tb] = n
		counted = true
	}
	if !has || had {
		return
	}
	if inArray(tb, key) {
		if err := e.conv.checkArray(tb.Len()); err != nil {
			e.raise(err)
			return
		}
	}
	if counted {
		if err := e.conv.checkMap(n); err != nil {
			e.raise(err)
		}
	}
}

func inArray(tb *lua.LTable, key lua.LValue) bool {
	n, ok := key.(lua.LNumber)
	if !ok {
		return false
	}
	i := int(n)
	return lua.LNumber(i) == n && i >= 1 && i <= tb.Len()
}

func countEntries(tb *lua.LTable) int {
	n := 0
	tb.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}

// checkTable caps constructors that end in a call or vararg.
func (e *Engine) checkTable(L *lua.LState) int {
	tb := L.CheckTable(1)
	if err := e.conv.checkArray(tb.Len()); err != nil {
		e.raise(err)
		return 0
	}
	L.Push(tb)
	return 1
}

func (e *Engine) rawset(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		tb := L.CheckTable(1)
		key := L.CheckAny(2)
		had := tb.RawGet(key) != lua.LNil
		n := callThrough(L, orig)
		e.stored(tb, key, had)
		return n
	}
}

func (e *Engine) tableInsert(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		tb := L.CheckTable(1)
		n := callThrough(L, orig)
		if count, ok := e.entries[tb]; ok {
			count++
			e.entries[tb] = count
			if err := e.conv.checkMap(count); err != nil {
				e.raise(err)
				return 0
			}
		}
		if err := e.conv.checkArray(tb.Len()); err != nil {
			e.raise(err)
			return 0
		}
		return n
	}
}

func (e *Engine) tableRemove(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		tb := L.CheckTable(1)
		before := tb.Len()
		n := callThrough(L, orig)
		if count, ok := e.entries[tb]; ok && tb.Len() < before {
			e.entries[tb] = count - 1
		}
		return n
	}
}

// tableConcat sizes the result before joining.
func (e *Engine) tableConcat(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if e.conv.maxString > 0 {
			tb := L.CheckTable(1)
			sep := L.OptString(2, "")
			i := L.OptInt(3, 1)
			j := L.OptInt(4, tb.Len())
			size := 0
			for k := i; k <= j; k++ {
				v := tb.RawGetInt(k)
				if !concatenable(v) {
					break
				}
				if k > i {
					size += len(sep)
				}
				size += len(lua.LVAsString(v))
				if err := e.conv.checkString(size); err != nil {
					e.raise(err)
					return 0
				}
			}
		}
		return callThrough(L, orig)
	}
}

// strFormat rejects oversized conversion widths and checks the result.
func (e *Engine) strFormat(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if !formatWidthsOK(L.CheckString(1)) {
			L.RaiseError("invalid format (width or precision too long)")
			return 0
		}
		n := callThrough(L, orig)
		if s, ok := L.Get(-1).(lua.LString); ok {
			if err := e.conv.checkString(len(s)); err != nil {
				e.raise(err)
				return 0
			}
		}
		return n
	}
}

// formatWidthsOK reports whether every width and precision in format has
// at most two digits.
func formatWidthsOK(format string) bool {
	digits := func(i int) int {
		j := i
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		return j
	}
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			continue
		}
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			i++
		}
		j := digits(i)
		if j-i > 2 {
			return false
		}
		i = j
		if i < len(format) && format[i] == '.' {
			j = digits(i + 1)
			if j-i-1 > 2 {
				return false
			}
			i = j
		}
	}
	return true
}

// callThrough calls fn with the current arguments and returns the number
// of results it left on the stack.
func callThrough(L *lua.LState, fn *lua.LFunction) int {
	top := L.GetTop()
	args := make([]lua.LValue, top)
	for i := range args {
		args[i] = L.Get(i + 1)
	}
	_ = L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet}, args...)
	return L.GetTop() - top
}

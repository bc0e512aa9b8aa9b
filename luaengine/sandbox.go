package luaengine

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/jonwraymond/toolscript/script"
)

// openLibs lists the standard libraries available to scripts. io, os,
// package, debug, channel and coroutine stay closed.
var openLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// removedGlobals are base functions that load code, touch the filesystem or
// write to the process's stdout.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"print",
	"collectgarbage",
	"getfenv",
	"setfenv",
	"newproxy",
	"_printregs",
}

// sandbox opens the allowed libraries on L and strips everything else.
func (e *Engine) sandbox() error {
	L := e.L
	for _, lib := range openLibs {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("open %q library: %w", lib.name, err)
		}
	}
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	strlib, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable)
	if !ok {
		return fmt.Errorf("%q library missing", lua.StringLibName)
	}
	tablib, ok := L.GetGlobal(lua.TabLibName).(*lua.LTable)
	if !ok {
		return fmt.Errorf("%q library missing", lua.TabLibName)
	}
	set := func(mod *lua.LTable, name string, fn lua.LGFunction) {
		mod.RawSetString(name, L.NewFunction(fn))
	}
	wrap := func(mod *lua.LTable, name string, w func(*lua.LFunction) lua.LGFunction) error {
		orig, ok := mod.RawGetString(name).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("library function %q missing", name)
		}
		set(mod, name, w(orig))
		return nil
	}

	// Pattern functions scan interruptibly; the rest apply the size caps.
	set(strlib, "rep", e.strRep)
	set(strlib, "find", e.strFind)
	set(strlib, "match", e.strMatch)
	set(strlib, "gmatch", e.strGmatch)
	set(strlib, "gsub", e.strGsub)
	for _, w := range []struct {
		mod  *lua.LTable
		name string
		fn   func(*lua.LFunction) lua.LGFunction
	}{
		{strlib, "format", e.strFormat},
		{tablib, "concat", e.tableConcat},
		{tablib, "insert", e.tableInsert},
		{tablib, "remove", e.tableRemove},
		{L.G.Global, "rawset", e.rawset},
	} {
		if err := wrap(w.mod, w.name, w.fn); err != nil {
			return err
		}
	}

	L.SetGlobal(concatGlobal, L.NewFunction(e.concat))
	L.SetGlobal(storeGlobal, L.NewFunction(e.store))
	L.SetGlobal(tableGlobal, L.NewFunction(e.checkTable))
	return nil
}

// strRep is string.rep with the string cap applied before allocating.
func (e *Engine) strRep(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	if n <= 0 || s == "" {
		L.Push(lua.LString(""))
		return 1
	}
	if limit := e.conv.maxString; limit > 0 && n > limit/len(s) {
		e.raise(fmt.Errorf("%w: string.rep result exceeds %d bytes", script.ErrSizeLimit, limit))
		return 0
	}
	L.Push(lua.LString(strings.Repeat(s, n)))
	return 1
}

// Package luaengine implements script.Engine on top of gopher-lua.
//
// Each engine owns one sandboxed Lua state. Only the base, table, string
// and math libraries are opened, and the base functions that load code or
// touch the filesystem are removed.
//
// # Results
//
// A script that is a single expression evaluates to that expression. A
// script made of statements evaluates to its return value; when the last
// statement is a function call, the call's result is returned.
//
// # Limits
//
// The engine installs a custom context on the Lua state. The VM polls it
// before every instruction, which is where operations are counted and where
// the progress hook runs. Call depth is bounded by the Lua call stack size
// and by a static nesting check at compile time. Size caps are applied
// whenever values cross the host boundary and to string.rep.
//
// # Values
//
// Lua tables whose keys are exactly 1..n become arrays; the empty table is
// an array. Other tables become maps with string keys. Integral numbers
// become integers.
package luaengine

package luaengine

import (
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/pm"
)

// pollEvery is how many match attempts pass between progress-hook polls.
const pollEvery = 256

// patternSpecials are the characters that make a find pattern non-plain.
const patternSpecials = "^$*+?.([%-"

// matcher tries a pattern one start position at a time, so a scan over a
// long subject stays interruptible by the timeout and the caller's context.
type matcher struct {
	e        *Engine
	pattern  string
	anchored bool
	src      []byte
	attempts int
}

func (e *Engine) newMatcher(pattern, subject string) *matcher {
	m := &matcher{e: e, pattern: pattern, src: []byte(subject)}
	if strings.HasPrefix(pattern, "^") {
		m.anchored = true
	} else {
		m.pattern = "^" + pattern
	}
	return m
}

// find returns the first match starting at or after init, or nil.
func (m *matcher) find(L *lua.LState, init int) *pm.MatchData {
	for sp := init; sp <= len(m.src); sp++ {
		m.attempts++
		if m.attempts%pollEvery == 0 {
			m.e.checkpoint()
		}
		mds, err := pm.Find(m.pattern, m.src, sp, 1)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return nil
		}
		if len(mds) > 0 {
			return mds[0]
		}
		if m.anchored {
			break
		}
	}
	return nil
}

// checkpoint polls the progress hook and raises the abort cause, if any.
func (e *Engine) checkpoint() {
	if err := e.pctx.poll(); err != nil {
		e.raise(err)
	}
}

// startIndex converts a 1-based, possibly negative, init argument into a
// byte offset clamped to [0, len(s)].
func startIndex(s string, init int) int {
	switch {
	case init < 0:
		init = len(s) + init
	case init > 0:
		init--
	}
	if init < 0 {
		return 0
	}
	if init > len(s) {
		return len(s)
	}
	return init
}

// pushCaptures pushes the captures of md. With no captures it pushes the
// whole match when whole is set.
func pushCaptures(L *lua.LState, s string, md *pm.MatchData, whole bool) int {
	if md.CaptureLength() == 2 {
		if !whole {
			return 0
		}
		L.Push(lua.LString(s[md.Capture(0):md.Capture(1)]))
		return 1
	}
	n := 0
	for i := 2; i < md.CaptureLength(); i += 2 {
		if md.IsPosCapture(i) {
			L.Push(lua.LNumber(md.Capture(i)))
		} else {
			L.Push(lua.LString(s[md.Capture(i):md.Capture(i+1)]))
		}
		n++
	}
	return n
}

// firstCapture returns the first capture of md, or the whole match when
// the pattern has none.
func firstCapture(s string, md *pm.MatchData) lua.LValue {
	switch {
	case md.CaptureLength() == 2:
		return lua.LString(s[md.Capture(0):md.Capture(1)])
	case md.IsPosCapture(2):
		return lua.LNumber(md.Capture(2))
	default:
		return lua.LString(s[md.Capture(2):md.Capture(3)])
	}
}

func (e *Engine) strFind(L *lua.LState) int {
	s := L.CheckString(1)
	pattern := L.CheckString(2)
	init := startIndex(s, L.OptInt(3, 1))
	plain := lua.LVAsBool(L.Get(4))

	if plain || !strings.ContainsAny(pattern, patternSpecials) {
		pos := strings.Index(s[init:], pattern)
		if pos < 0 {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(init + pos + 1))
		L.Push(lua.LNumber(init + pos + len(pattern)))
		return 2
	}

	md := e.newMatcher(pattern, s).find(L, init)
	if md == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(md.Capture(0) + 1))
	L.Push(lua.LNumber(md.Capture(1)))
	return 2 + pushCaptures(L, s, md, false)
}

func (e *Engine) strMatch(L *lua.LState) int {
	s := L.CheckString(1)
	pattern := L.CheckString(2)
	init := startIndex(s, L.OptInt(3, 1))

	md := e.newMatcher(pattern, s).find(L, init)
	if md == nil {
		L.Push(lua.LNil)
		return 1
	}
	return pushCaptures(L, s, md, true)
}

// strGmatch returns an iterator that finds each match lazily.
func (e *Engine) strGmatch(L *lua.LState) int {
	s := L.CheckString(1)
	m := e.newMatcher(L.CheckString(2), s)
	pos, done := 0, false
	L.Push(L.NewFunction(func(L *lua.LState) int {
		if done || pos > len(s) {
			return 0
		}
		md := m.find(L, pos)
		if md == nil {
			done = true
			return 0
		}
		start, end := md.Capture(0), md.Capture(1)
		pos = end
		if end == start {
			pos++
		}
		done = m.anchored
		return pushCaptures(L, s, md, true)
	}))
	return 1
}

// strGsub builds its result incrementally, checking the string cap after
// every replacement.
func (e *Engine) strGsub(L *lua.LState) int {
	s := L.CheckString(1)
	pattern := L.CheckString(2)
	L.CheckTypes(3, lua.LTString, lua.LTTable, lua.LTFunction)
	repl := L.Get(3)
	limit := L.OptInt(4, -1)

	m := e.newMatcher(pattern, s)
	var b strings.Builder
	count, pos := 0, 0
	for (limit < 0 || count < limit) && pos <= len(s) {
		md := m.find(L, pos)
		if md == nil {
			break
		}
		start, end := md.Capture(0), md.Capture(1)
		count++
		b.WriteString(s[pos:start])
		b.WriteString(e.replacement(L, s, md, repl))
		if end > start {
			pos = end
		} else {
			if start < len(s) {
				b.WriteByte(s[start])
			}
			pos = start + 1
		}
		if err := e.conv.checkString(b.Len()); err != nil {
			e.raise(err)
			return 0
		}
		if m.anchored {
			break
		}
	}
	if pos < len(s) {
		b.WriteString(s[pos:])
	}
	if err := e.conv.checkString(b.Len()); err != nil {
		e.raise(err)
		return 0
	}
	L.Push(lua.LString(b.String()))
	L.Push(lua.LNumber(count))
	return 2
}

// replacement returns the text that replaces one gsub match. A false or
// nil table or function result keeps the original match.
func (e *Engine) replacement(L *lua.LState, s string, md *pm.MatchData, repl lua.LValue) string {
	whole := s[md.Capture(0):md.Capture(1)]
	var v lua.LValue
	switch r := repl.(type) {
	case lua.LString:
		return expandReplacement(L, string(r), s, md)
	case *lua.LTable:
		v = L.GetTable(r, firstCapture(s, md))
	case *lua.LFunction:
		L.Push(r)
		L.Call(pushCaptures(L, s, md, true), 1)
		v = L.Get(-1)
		L.Pop(1)
	}
	if lua.LVIsFalse(v) {
		return whole
	}
	if !concatenable(v) {
		L.RaiseError("invalid replacement value (a %s)", v.Type().String())
		return whole
	}
	return lua.LVAsString(v)
}

// expandReplacement substitutes %0 to %9 in repl. Any other escaped
// character is copied literally.
func expandReplacement(L *lua.LState, repl, s string, md *pm.MatchData) string {
	if strings.IndexByte(repl, '%') < 0 {
		return repl
	}
	ncap := md.CaptureLength()/2 - 1
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '%' || i == len(repl)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		d := repl[i]
		if d < '0' || d > '9' {
			b.WriteByte(d)
			continue
		}
		idx := int(d - '0')
		switch {
		case idx == 0, idx == 1 && ncap == 0:
			b.WriteString(s[md.Capture(0):md.Capture(1)])
		case idx > ncap:
			L.RaiseError("invalid capture index")
		case md.IsPosCapture(2 * idx):
			b.WriteString(strconv.Itoa(md.Capture(2 * idx)))
		default:
			b.WriteString(s[md.Capture(2*idx):md.Capture(2*idx+1)])
		}
	}
	return b.String()
}

package luaengine

import (
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/toolscript/script"
)

func TestEngine_ConcatLoopCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxStringSize = 1000
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, `local s = "x" for i = 1, 24 do s = s .. s end return #s`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}
}

func TestEngine_ConcatSemantics(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	tests := []struct {
		src  string
		want string
	}{
		{`"a" .. "b" .. "c"`, "abc"},
		{`1 .. 2`, "12"},
		{`"n=" .. 1.5`, "n=1.5"},
		{`(function() return "x", "y" end)() .. "z"`, "xz"},
		{`setmetatable({}, {__concat = function(a, b) return "meta" end}) .. "!"`, "meta"},
		{`"[" .. setmetatable({}, {__concat = function(a, b) return "T" .. b end}) .. "]"`, "[T]"},
	}
	for _, tt := range tests {
		v, err := eval(t, e, tt.src)
		if err != nil {
			t.Errorf("%s: error = %v", tt.src, err)
			continue
		}
		if v.Str() != tt.want {
			t.Errorf("%s = %q, want %q", tt.src, v.Str(), tt.want)
		}
	}

	_, err := eval(t, e, `"a" .. nil`)
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("concat nil error = %v, want *RuntimeError", err)
	}
}

func TestEngine_TableConcatCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxStringSize = 1000
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, `
local parts = {}
for i = 1, 50 do parts[i] = "0123456789012345678901234567890123456789" end
return table.concat(parts, ",")`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}

	v, err := eval(t, e, `table.concat({"a", "b", 3}, "-")`)
	if err != nil || v.Str() != "a-b-3" {
		t.Errorf("table.concat = %v, %v", v, err)
	}
}

func TestEngine_FormatCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxStringSize = 100
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, `string.format("%s%s", string.rep("x", 60), string.rep("y", 60))`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}
	if _, err := eval(t, e, `string.format("%999999d", 1)`); err == nil {
		t.Error("wide format accepted")
	}
	v, err := eval(t, e, `string.format("%d-%s|%%", 7, "a")`)
	if err != nil || v.Str() != "7-a|%" {
		t.Errorf("string.format = %v, %v", v, err)
	}
}

func TestEngine_ArrayGrowthCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxArraySize = 10
	e := newTestEngine(t, cfg)
	for _, src := range []string{
		`local t = {} for i = 1, 5000 do t[i] = i end return #t`,
		`local t = {} for i = 1, 5000 do t[#t + 1] = i end return #t`,
		`local t = {} for i = 1, 5000 do table.insert(t, i) end return #t`,
		`local t = {} for i = 1, 5000 do rawset(t, i, i) end return #t`,
		`local t = {} for i = 1, 5000 do t[i], t[i + 1] = i, i end return #t`,
		`local t = {string.byte(string.rep("x", 50), 1, -1)} return #t`,
	} {
		if _, err := eval(t, e, src); !errors.Is(err, script.ErrSizeLimit) {
			t.Errorf("%s: error = %v, want ErrSizeLimit", src, err)
		}
	}

	v, err := eval(t, e, `local t = {} for i = 1, 10 do t[i] = i end t[5] = 50 return t[5] + #t`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Int64() != 60 {
		t.Errorf("result = %v, want 60", v.Int64())
	}
}

func TestEngine_MapGrowthCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxMapSize = 10
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, `local t = {} for i = 1, 100 do t["k" .. i] = i end`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}

	// Deleted keys free their slot.
	v, err := eval(t, e, `
local t = {}
for i = 1, 100 do
  t.key = i
  t["k" .. (i % 5)] = i
  t["k" .. (i % 5)] = nil
end
return t.key`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Int64() != 100 {
		t.Errorf("result = %v, want 100", v.Int64())
	}
}

func TestEngine_StackPushPopStaysUnderCap(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxArraySize = 10
	cfg.MaxMapSize = 10
	e := newTestEngine(t, cfg)
	v, err := eval(t, e, `
local s = {name = "stack"}
s.pushes = 0
for i = 1, 100 do
  s.pushes = s.pushes + 2
  table.insert(s, i)
  s[#s + 1] = i
  table.remove(s)
  table.remove(s)
end
return #s`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Int64() != 0 {
		t.Errorf("result = %v, want 0", v.Int64())
	}
}

func TestEngine_MultipleAssignment(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	v, err := eval(t, e, `
local t, x = {}, 0
t[1], x, t.b = "a", 7, (function() return 1, 2 end)()
local a, b = 1, 2
a, b = b, a
return t[1] .. x .. t.b .. a .. b`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Str() != "a7121" {
		t.Errorf("result = %q, want a7121", v.Str())
	}
}

func TestEngine_NewIndexStillApplies(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	v, err := eval(t, e, `
local seen = {}
local proxy = setmetatable({}, {__newindex = function(_, k, v) rawset(seen, k, v) end})
proxy.x = 42
return seen.x`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Int64() != 42 {
		t.Errorf("result = %v, want 42", v.Int64())
	}
}

func TestEngine_GsubCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxStringSize = 1000
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, `string.gsub(string.rep("y", 600), "y", "zz")`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}
}

func TestEngine_PatternFunctions(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	tests := []struct {
		src  string
		want string
	}{
		{`string.gsub("hello world", "o", "0")`, "hell0 w0rld"},
		{`string.gsub("abc", "x*", "-")`, "-a-b-c-"},
		{`string.gsub("hello world", "(%w+)", "<%1>")`, "<hello> <world>"},
		{`string.gsub("hello", "", "-")`, "-h-e-l-l-o-"},
		{`string.gsub("abc", "%w", "%0%0")`, "aabbcc"},
		{`string.gsub("abc", "^a", "x")`, "xbc"},
		{`string.gsub("aaa", "a", "b", 2)`, "bba"},
		{`string.gsub("$name is $age", "%$(%w+)", {name = "ada", age = 36})`, "ada is 36"},
		{`string.gsub("a b", "%w", function(c) if c == "a" then return "A" end end)`, "A b"},
		{`select(2, string.gsub("a,b,c", ",", ";"))`, "2"},
		{`string.match("key=value", "(%w+)=(%w+)")`, "key"},
		{`string.match("  trim  ", "^%s*(.-)%s*$")`, "trim"},
		{`string.match("abc", "()b")`, "2"},
		{`tostring(string.match("abc", "x"))`, "nil"},
		{`string.find("a.b", ".", 1, true)`, "2"},
		{`select(2, string.find("hello", "l+"))`, "4"},
		{`string.find("hello", "l", -2)`, "4"},
		{`tostring(string.find("hello", "^l"))`, "nil"},
		{`("x=1"):match("%d")`, "1"},
	}
	for _, tt := range tests {
		v, err := eval(t, e, tt.src)
		if err != nil {
			t.Errorf("%s: error = %v", tt.src, err)
			continue
		}
		if v.Text() != tt.want {
			t.Errorf("%s = %q, want %q", tt.src, v.Text(), tt.want)
		}
	}

	v, err := eval(t, e, `
local words = {}
for w in string.gmatch("one two  three", "%a+") do words[#words + 1] = w end
local pairs_ = {}
for k, val in ("a=1, b=2"):gmatch("(%w+)=(%w+)") do pairs_[#pairs_ + 1] = k .. val end
return table.concat(words, "|") .. ";" .. table.concat(pairs_, "|")`)
	if err != nil {
		t.Fatalf("gmatch error = %v", err)
	}
	if v.Str() != "one|two|three;a1|b2" {
		t.Errorf("gmatch = %q", v.Str())
	}
}

func TestEngine_PatternScanInterruptible(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxStringSize = 10_000_000
	e := newTestEngine(t, cfg)
	stop := errors.New("deadline")
	start := time.Now()
	e.OnProgress(func(uint64) error {
		if time.Since(start) > 200*time.Millisecond {
			return stop
		}
		return nil
	})
	_, err := eval(t, e, `
local big = string.rep("y", 2000000)
return string.gsub(big, "y", "zz")`)
	if err == nil {
		// finished inside the budget
		return
	}
	if !errors.Is(err, stop) {
		t.Fatalf("error = %v, want cause %v", err, stop)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("gsub aborted after %v, want prompt abort", elapsed)
	}
}

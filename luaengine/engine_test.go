package luaengine

import (
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/toolscript/script"
)

func newTestEngine(t *testing.T, cfg script.EngineConfig) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func eval(t *testing.T, e *Engine, src string) (script.Value, error) {
	t.Helper()
	p, err := e.Compile(src)
	if err != nil {
		return script.Unit(), err
	}
	return e.Evaluate(p)
}

func defaultConfig() script.EngineConfig {
	return script.EngineConfig{
		MaxOperations: 100_000,
		MaxCallDepth:  script.MaxCallDepth,
		MaxStringSize: 1024,
		MaxArraySize:  100,
		MaxMapSize:    100,
	}
}

func TestEngine_ExpressionResult(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	v, err := eval(t, e, `1 + 2`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Kind() != script.KindInt || v.Int64() != 3 {
		t.Errorf("result = %v, want 3", v)
	}
}

func TestEngine_ChunkReturn(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	v, err := eval(t, e, "local s = 0\nfor i = 1, 4 do s = s + i end\nreturn s")
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Int64() != 10 {
		t.Errorf("result = %v, want 10", v)
	}
}

func TestEngine_TrailingCallIsResult(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	e.Bind("echo", func(args []script.Value) (script.Value, error) {
		return args[0], nil
	})
	v, err := eval(t, e, "local a = 1\necho(\"last\")")
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Str() != "last" {
		t.Errorf("result = %v, want \"last\"", v)
	}
}

func TestEngine_NoResultIsUnit(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	v, err := eval(t, e, "local a = 1")
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if !v.IsUnit() {
		t.Errorf("result = %v, want unit", v)
	}
}

func TestEngine_CompileError(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	_, err := e.Compile(`if then (`)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Compile error = %v, want *CompileError", err)
	}
}

func TestEngine_NestingDepthRejected(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxCallDepth = 4
	e := newTestEngine(t, cfg)
	src := strings.Repeat("do ", 10) + strings.Repeat("end ", 10)
	_, err := e.Compile(src)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Compile error = %v, want *CompileError", err)
	}
	if !strings.Contains(ce.Error(), "maximum depth (4)") {
		t.Errorf("message = %q", ce.Error())
	}
}

func TestEngine_ElseifChainNotNested(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxCallDepth = 4
	e := newTestEngine(t, cfg)
	var b strings.Builder
	b.WriteString("local x = 9\nif x == 0 then return 0\n")
	for i := 1; i < 12; i++ {
		b.WriteString("elseif x == 99 then return 1\n")
	}
	b.WriteString("else return 2 end")
	v, err := eval(t, e, b.String())
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Int64() != 2 {
		t.Errorf("result = %v, want 2", v)
	}
}

func TestEngine_OperationLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxOperations = 10
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, "local x = 0\nfor i = 1, 1000 do x = x + i end\nreturn x")
	if !errors.Is(err, script.ErrOperationLimit) {
		t.Fatalf("error = %v, want ErrOperationLimit", err)
	}
	if e.Operations() <= 10 {
		t.Errorf("Operations() = %d, want > 10", e.Operations())
	}
}

func TestEngine_ProgressAbort(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	stop := errors.New("stop")
	var calls uint64
	e.OnProgress(func(ops uint64) error {
		calls = ops
		if ops >= 50 {
			return stop
		}
		return nil
	})
	_, err := eval(t, e, "while true do end")
	var abort *script.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("error = %v, want *AbortError", err)
	}
	if !errors.Is(err, stop) {
		t.Errorf("error = %v, want cause stop", err)
	}
	if calls != 50 {
		t.Errorf("progress called up to %d, want 50", calls)
	}
}

func TestEngine_AbortEscapesPcall(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxOperations = 200
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, "while true do pcall(function() while true do end end) end")
	if !errors.Is(err, script.ErrOperationLimit) {
		t.Fatalf("error = %v, want ErrOperationLimit", err)
	}
}

func TestEngine_HostErrorPreserved(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	want := script.ToolNotFound("nope")
	e.Bind("fail", func([]script.Value) (script.Value, error) {
		return script.Unit(), want
	})
	_, err := eval(t, e, `fail()`)
	var got *script.Error
	if !errors.As(err, &got) || got != want {
		t.Fatalf("error = %v, want the host error", err)
	}
}

func TestEngine_HostErrorTextInPcall(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	e.Bind("fail", func([]script.Value) (script.Value, error) {
		return script.Unit(), errors.New("bad input")
	})
	v, err := eval(t, e, "local ok, msg = pcall(fail)\nreturn tostring(msg)")
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Str() != "bad input" {
		t.Errorf("result = %q, want \"bad input\"", v.Str())
	}
}

func TestEngine_RuntimeError(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	_, err := eval(t, e, `error("kaboom")`)
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *RuntimeError", err)
	}
	if !strings.Contains(re.Message, "kaboom") {
		t.Errorf("message = %q", re.Message)
	}
}

func TestEngine_RecursionBounded(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxOperations = 0
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, "local function f(n) return 1 + f(n + 1) end\nreturn f(1)")
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *RuntimeError", err)
	}
}

func TestEngine_Sandbox(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	for _, name := range []string{"io", "os", "require", "dofile", "loadstring", "load", "debug", "print"} {
		v, err := eval(t, e, "return type("+name+")")
		if err != nil {
			t.Fatalf("type(%s) error = %v", name, err)
		}
		if v.Str() != "nil" {
			t.Errorf("type(%s) = %q, want nil", name, v.Str())
		}
	}
	v, err := eval(t, e, `string.upper("ok") .. math.floor(2.5)`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Str() != "OK2" {
		t.Errorf("result = %q, want OK2", v.Str())
	}
}

func TestEngine_StringRepCapped(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	_, err := eval(t, e, `string.rep("x", 2048)`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}
	v, err := eval(t, e, `string.rep("ab", 3)`)
	if err != nil || v.Str() != "ababab" {
		t.Errorf("string.rep = %v, %v", v, err)
	}
}

func TestEngine_ResultSizeCaps(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxArraySize = 3
	e := newTestEngine(t, cfg)
	_, err := eval(t, e, `{1, 2, 3, 4}`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}
}

func TestEngine_HostArgumentCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxMapSize = 1
	e := newTestEngine(t, cfg)
	called := false
	e.Bind("take", func([]script.Value) (script.Value, error) {
		called = true
		return script.Unit(), nil
	})
	_, err := eval(t, e, `take({a = 1, b = 2})`)
	if !errors.Is(err, script.ErrSizeLimit) {
		t.Fatalf("error = %v, want ErrSizeLimit", err)
	}
	if called {
		t.Error("host function ran with an oversized argument")
	}
}

func TestEngine_BindRoundTrip(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	var got []script.Value
	e.Bind("inspect", func(args []script.Value) (script.Value, error) {
		got = args
		return script.Map(map[string]script.Value{
			"list": script.Array(script.Int(1), script.String("two")),
		}), nil
	})
	v, err := eval(t, e, `inspect("s", 2, 2.5, true, nil, {1, 2}, {k = "v"}).list[2]`)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if v.Str() != "two" {
		t.Errorf("result = %v, want \"two\"", v)
	}
	wantKinds := []script.Kind{
		script.KindString, script.KindInt, script.KindFloat, script.KindBool,
		script.KindUnit, script.KindArray, script.KindMap,
	}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d args, want %d", len(got), len(wantKinds))
	}
	for i, k := range wantKinds {
		if got[i].Kind() != k {
			t.Errorf("arg %d kind = %v, want %v", i, got[i].Kind(), k)
		}
	}
}

func TestEngine_EvaluateForeignProgram(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	if _, err := e.Evaluate(struct{}{}); err == nil {
		t.Error("Evaluate(foreign) error = nil")
	}
}

func TestFactory_IsolatedStates(t *testing.T) {
	f := NewFactory()
	a, err := f.NewEngine(defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := f.NewEngine(defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	pa, _ := a.Compile("shared = 1")
	if _, err := a.Evaluate(pa); err != nil {
		t.Fatal(err)
	}
	pb, _ := b.Compile("return shared")
	v, err := b.Evaluate(pb)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUnit() {
		t.Errorf("global leaked across engines: %v", v)
	}
}

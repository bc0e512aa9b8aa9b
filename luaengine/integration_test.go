package luaengine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/toolscript/luaengine"
	"github.com/jonwraymond/toolscript/script"
)

func newOrchestrator(t *testing.T, accounting script.Accounting) *script.Orchestrator {
	t.Helper()
	o, err := script.New(script.Config{
		Engine:     luaengine.NewFactory(),
		Accounting: accounting,
	})
	if err != nil {
		t.Fatalf("script.New() error = %v", err)
	}
	o.RegisterFunc("greet", func(_ context.Context, input any) (string, error) {
		return fmt.Sprintf("Hello, %v!", input), nil
	})
	return o
}

func TestLua_Greet(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	res, err := o.Execute(context.Background(), `greet("Claude")`, script.DefaultLimits())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success || res.Output != "Hello, Claude!" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Calls) != 1 || res.Calls[0].Input != "Claude" {
		t.Errorf("calls = %+v", res.Calls)
	}
}

func TestLua_ToolCallLimitIsSoft(t *testing.T) {
	for _, acc := range []script.Accounting{script.AccountingShared, script.AccountingCooperative} {
		t.Run(acc.String(), func(t *testing.T) {
			o := newOrchestrator(t, acc)
			src := `
local out = {}
for i = 1, 4 do
  out[i] = greet("n" .. i)
end
return out[4]`
			res, err := o.Execute(context.Background(), src, script.DefaultLimits().WithMaxToolCalls(3))
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Output != "ERROR: Maximum tool calls (3) exceeded" {
				t.Errorf("Output = %q", res.Output)
			}
			if len(res.Calls) != 3 {
				t.Fatalf("len(Calls) = %d, want 3", len(res.Calls))
			}
			for i, c := range res.Calls {
				if want := fmt.Sprintf("n%d", i+1); c.Input != want {
					t.Errorf("Calls[%d].Input = %v, want %s", i, c.Input, want)
				}
			}
		})
	}
}

func TestLua_MaxOperations(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	src := "local x = 0\nfor i = 1, 1000 do x = x + i end\nreturn x"
	_, err := o.Execute(context.Background(), src, script.DefaultLimits().WithMaxOperations(10))
	var e *script.Error
	if !errors.As(err, &e) || e.Kind != script.KindMaxOperations || e.Limit != 10 {
		t.Fatalf("error = %#v, want MaxOperationsExceeded(10)", err)
	}
}

func TestLua_TimeoutIndependentOfOperations(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	limits := script.DefaultLimits().
		WithMaxOperations(1 << 62).
		WithTimeoutMs(1)
	_, err := o.Execute(context.Background(), "local x = 0\nwhile true do x = x + 1 end", limits)
	var e *script.Error
	if !errors.As(err, &e) || e.Kind != script.KindTimeout || e.Limit != 1 {
		t.Fatalf("error = %v, want Timeout(1)", err)
	}
}

func TestLua_SyntaxError(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	res, err := o.Execute(context.Background(), `greet("a"`, script.DefaultLimits())
	kind, ok := script.KindOf(err)
	if !ok || kind != script.KindCompilation {
		t.Fatalf("error = %v, want compilation error", err)
	}
	if len(res.Calls) != 0 {
		t.Errorf("len(Calls) = %d, want 0", len(res.Calls))
	}
}

func TestLua_HandlerErrorInBand(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	o.RegisterFunc("explode", func(context.Context, any) (string, error) {
		return "", errors.New("boom")
	})
	res, err := o.Execute(context.Background(), `"got: " .. explode()`, script.DefaultLimits())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success || !strings.Contains(res.Output, "Tool error: boom") {
		t.Errorf("result = %+v", res)
	}
	if len(res.Calls) != 1 || res.Calls[0].Success || res.Calls[0].Output != "Tool error: boom" {
		t.Errorf("calls = %+v", res.Calls)
	}
}

func TestLua_CallToolUnknownIsFatalEvenIfTrapped(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	_, err := o.Execute(context.Background(), `pcall(call_tool, "missing", 1)
return "ignored"`, script.DefaultLimits())
	kind, ok := script.KindOf(err)
	if !ok || kind != script.KindToolNotFound {
		t.Fatalf("error = %v, want tool-not-found", err)
	}
}

func TestLua_CallToolDispatch(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	res, err := o.Execute(context.Background(), `call_tool("greet", "Ada")`, script.DefaultLimits())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "Hello, Ada!" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestLua_ValueBridgeToHandler(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	var got any
	o.RegisterFunc("capture", func(_ context.Context, input any) (string, error) {
		got = input
		return "ok", nil
	})
	src := `capture({name = "x", n = 2, f = 1.5, ok = true, list = {1, "two", {3}}})`
	if _, err := o.Execute(context.Background(), src, script.DefaultLimits()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("input = %T, want map", got)
	}
	if m["name"] != "x" || m["n"] != int64(2) || m["f"] != 1.5 || m["ok"] != true {
		t.Errorf("scalars = %v", m)
	}
	list, ok := m["list"].([]any)
	if !ok || len(list) != 3 || list[0] != int64(1) || list[1] != "two" {
		t.Fatalf("list = %v", m["list"])
	}
	if inner, ok := list[2].([]any); !ok || len(inner) != 1 || inner[0] != int64(3) {
		t.Errorf("nested = %v", list[2])
	}
}

func TestLua_PrintCapturedAndOutputNormalized(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	res, err := o.Execute(context.Background(), "print(\"a\", 1)\nreturn {1, 2}", script.DefaultLimits())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Stdout != "a\t1\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Output != "[1, 2]" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestLua_ContextCancelled(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	limits := script.DefaultLimits().WithMaxOperations(0).WithTimeout(10 * time.Second)
	_, err := o.Execute(ctx, "while true do end", limits)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestLua_InScriptGrowthCapped(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	tests := []struct {
		name   string
		src    string
		limits script.ExecutionLimits
	}{
		{"concat", `local s = "x" for i = 1, 24 do s = s .. s end return #s`, script.QuickLimits().WithMaxStringSize(1000)},
		{"array", `local t = {} for i = 1, 5000 do t[#t + 1] = i end return #t`, script.QuickLimits().WithMaxArraySize(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := o.Execute(context.Background(), tt.src, tt.limits)
			if !errors.Is(err, script.ErrSizeLimit) {
				t.Fatalf("error = %v, want ErrSizeLimit", err)
			}
			if res.Success {
				t.Errorf("result = %+v, want failure", res)
			}
		})
	}
}

func TestLua_GsubHonorsTimeout(t *testing.T) {
	o := newOrchestrator(t, script.AccountingShared)
	src := `
local parts = {}
for i = 1, 200 do parts[i] = string.rep("y", 1000) end
local big = table.concat(parts)
for i = 1, 1000 do big = string.gsub(big, "y", "y") end
return #big`
	limits := script.DefaultLimits().WithTimeout(100 * time.Millisecond)
	start := time.Now()
	_, err := o.Execute(context.Background(), src, limits)
	var e *script.Error
	if !errors.As(err, &e) || e.Kind != script.KindTimeout {
		t.Fatalf("error = %v, want Timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timed out after %v, want prompt abort", elapsed)
	}
}

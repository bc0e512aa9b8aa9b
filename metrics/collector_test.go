package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jonwraymond/toolscript/script"
)

func TestCollector_ExecutionFinished(t *testing.T) {
	c := NewCollector()
	c.ExecutionFinished(script.ExecutionResult{Success: true, Duration: time.Millisecond}, nil)
	c.ExecutionFinished(script.ExecutionResult{}, script.MaxOperationsExceeded(10))
	c.ExecutionFinished(script.ExecutionResult{}, script.Timeout(time.Second))
	c.ExecutionFinished(script.ExecutionResult{}, script.Timeout(time.Second))

	tests := []struct {
		outcome string
		want    float64
	}{
		{OutcomeSuccess, 1},
		{"max_operations_exceeded", 1},
		{"timeout", 2},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(c.executions.WithLabelValues(tt.outcome))
		if got != tt.want {
			t.Errorf("executions_total{outcome=%q} = %v, want %v", tt.outcome, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.executionDuration); n != 1 {
		t.Errorf("execution_duration_seconds series = %d, want 1", n)
	}
}

func TestCollector_ToolCalled(t *testing.T) {
	c := NewCollector()
	c.ToolCalled(script.ToolCallRecord{ToolName: "greet", Success: true, Duration: time.Millisecond})
	c.ToolCalled(script.ToolCallRecord{ToolName: "greet", Success: false})
	c.ToolCalled(script.ToolCallRecord{ToolName: "greet", Success: true})

	if got := testutil.ToFloat64(c.toolCalls.WithLabelValues("greet", "true")); got != 2 {
		t.Errorf("tool_calls_total{success=true} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.toolCalls.WithLabelValues("greet", "false")); got != 1 {
		t.Errorf("tool_calls_total{success=false} = %v, want 1", got)
	}
}

func TestCollector_RegisteredTools(t *testing.T) {
	c := NewCollector()
	c.SetRegisteredTools(3)
	if got := testutil.ToFloat64(c.registeredTools); got != 3 {
		t.Errorf("registered_tools = %v, want 3", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ExecutionFinished(script.ExecutionResult{}, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `toolscript_executions_total{outcome="success"} 1`) {
		t.Errorf("metrics body missing executions counter:\n%s", body)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{script.CompilationError("x"), "compilation_error"},
		{script.ToolNotFound("x"), "tool_not_found"},
		{errors.New("plain"), "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

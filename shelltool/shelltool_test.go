package shelltool

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultShell); err != nil {
		t.Skip("sh not available")
	}
}

func TestTool_Validate(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		want error
	}{
		{"valid", Tool{Name: "a", Command: "true"}, nil},
		{"missing name", Tool{Command: "true"}, ErrNameRequired},
		{"missing command", Tool{Name: "a"}, ErrCommandRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tool.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTool_Run_InputEnv(t *testing.T) {
	requireShell(t)
	tool := Tool{Name: "echo", Command: `printf '  %s  ' "$input"`}
	out, err := tool.Run(context.Background(), map[string]any{"q": "x"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != `{"q":"x"}` {
		t.Errorf("Run() = %q, want trimmed JSON", out)
	}
}

func TestTool_Run_Stdin(t *testing.T) {
	requireShell(t)
	tool := Tool{Name: "cat", Command: "cat"}
	out, err := tool.Run(context.Background(), "Claude")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != `"Claude"` {
		t.Errorf("Run() = %q", out)
	}
}

func TestTool_Run_NilInput(t *testing.T) {
	requireShell(t)
	out, err := Tool{Name: "n", Command: `echo "$input"`}.Run(context.Background(), nil)
	if err != nil || out != "null" {
		t.Errorf("Run() = %q, %v", out, err)
	}
}

func TestTool_Run_FailureUsesStderr(t *testing.T) {
	requireShell(t)
	tool := Tool{Name: "fail", Command: "echo out; echo ' bad thing ' >&2; exit 3"}
	_, err := tool.Run(context.Background(), nil)
	if err == nil || err.Error() != "bad thing" {
		t.Errorf("Run() error = %v, want \"bad thing\"", err)
	}
}

func TestTool_Run_FailureWithoutStderr(t *testing.T) {
	requireShell(t)
	_, err := Tool{Name: "fail", Command: "exit 4"}.Run(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "status 4") {
		t.Errorf("Run() error = %v, want exit status", err)
	}
}

func TestTool_Run_Timeout(t *testing.T) {
	requireShell(t)
	tool := Tool{Name: "slow", Command: "sleep 5", Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := tool.Run(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("Run() did not stop at the timeout")
	}
}

func TestTool_Run_EnvAndDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	tool := Tool{
		Name:    "env",
		Command: `echo "$GREETING"; pwd`,
		Env:     map[string]string{"GREETING": "hi"},
		Dir:     dir,
	}
	out, err := tool.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || lines[0] != "hi" || !strings.HasSuffix(lines[1], dir[strings.LastIndex(dir, "/"):]) {
		t.Errorf("Run() = %q", out)
	}
}

func TestTool_Handler(t *testing.T) {
	requireShell(t)
	h := Tool{Name: "h", Command: "echo ok"}.Handler()
	out, err := h.Call(context.Background(), nil)
	if err != nil || out != "ok" {
		t.Errorf("Call() = %q, %v", out, err)
	}
}

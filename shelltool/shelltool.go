package shelltool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jonwraymond/toolscript/script"
)

// DefaultShell is the interpreter used when Tool.Shell is empty.
const DefaultShell = "sh"

// InputEnv is the environment variable that carries the JSON-encoded input.
const InputEnv = "input"

// waitDelay bounds how long Run waits for output pipes after the command is
// killed, since background children of the shell may keep them open.
const waitDelay = 500 * time.Millisecond

// Errors returned by Tool validation.
var (
	ErrNameRequired    = errors.New("shelltool: name is required")
	ErrCommandRequired = errors.New("shelltool: command is required")
)

// Tool is a tool implemented by a shell command.
type Tool struct {
	// Name is the registered tool name.
	Name string

	// Description is shown in tool listings.
	Description string

	// Command is passed to `sh -c`. The JSON-encoded input is available as
	// $input and on stdin.
	Command string

	// Timeout bounds a single run. Zero relies on the caller's context.
	Timeout time.Duration

	// Dir is the working directory. Empty uses the current directory.
	Dir string

	// Env holds extra environment variables.
	Env map[string]string

	// Shell overrides DefaultShell.
	Shell string
}

// Validate checks that required fields are set.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(t.Command) == "" {
		return fmt.Errorf("%w: tool %q", ErrCommandRequired, t.Name)
	}
	return nil
}

// Handler returns a script.Handler that runs the command.
func (t Tool) Handler() script.Handler {
	return script.HandlerFunc(t.Run)
}

// Run executes the command with input.
//
// On exit status 0 it returns trimmed stdout. Otherwise it returns an error
// carrying trimmed stderr, or the exit status when stderr is empty.
func (t Tool) Run(ctx context.Context, input any) (string, error) {
	payload, err := encodeInput(input)
	if err != nil {
		return "", err
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	shell := t.Shell
	if shell == "" {
		shell = DefaultShell
	}
	cmd := exec.CommandContext(ctx, shell, "-c", t.Command)
	cmd.Dir = t.Dir
	cmd.Env = t.environ(payload)
	cmd.Stdin = strings.NewReader(payload)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", t.Name, ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.New(msg)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("command exited with status %d", exitErr.ExitCode())
		}
		return "", fmt.Errorf("failed to execute command: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (t Tool) environ(payload string) []string {
	env := os.Environ()
	for k, v := range t.Env {
		env = append(env, k+"="+v)
	}
	return append(env, InputEnv+"="+payload)
}

func encodeInput(input any) (string, error) {
	if input == nil {
		return "null", nil
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode input: %w", err)
	}
	return string(b), nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/toolscript/protocol"
	"github.com/jonwraymond/toolscript/script"
)

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newApp()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_Stdin(t *testing.T) {
	out, err := runApp(t, "print('hi')\nreturn 1 + 1", "run", "-")
	require.NoError(t, err)
	assert.Equal(t, "hi\n2\n", out)
}

func TestRun_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return "from file"`), 0o600))

	out, err := runApp(t, "", "run", path)
	require.NoError(t, err)
	assert.Equal(t, "from file\n", out)
}

func TestRun_JSON(t *testing.T) {
	out, err := runApp(t, "return {1, 2}", "run", "--json")
	require.NoError(t, err)

	var resp protocol.ExecuteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "[1, 2]", resp.Output)
}

func TestRun_LimitFlags(t *testing.T) {
	_, err := runApp(t, "while true do end", "run", "--max-operations", "50")
	require.Error(t, err)
	kind, ok := script.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, script.KindMaxOperations, kind)

	_, err = runApp(t, "return 1", "run", "--preset", "turbo")
	assert.Error(t, err)

	_, err = runApp(t, "return 1", "run", "--max-tool-calls", "-1")
	assert.Error(t, err)
}

func TestRun_InvalidLogFormat(t *testing.T) {
	_, err := runApp(t, "return 1", "--log-format", "xml", "run")
	assert.Error(t, err)
}

func TestRun_ConfiguredShellTool(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "toolscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
limits:
  preset: quick
tools:
  - name: upper
    description: Upper-cases its input
    command: 'printf %s "$input" | tr a-z A-Z'
    timeout: 5s
`), 0o600))

	out, err := runApp(t, `return upper("abc")`, "--config", path, "run")
	require.NoError(t, err)
	assert.Equal(t, "\"ABC\"\n", out)
}

func TestInfo(t *testing.T) {
	out, err := runApp(t, "", "info")
	require.NoError(t, err)

	var info Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "shared", info.Accounting)
	assert.Len(t, info.Tools, 6)
	assert.Empty(t, info.Scripts)
	assert.Equal(t, script.DefaultLimits().MaxToolCalls, info.Limits.MaxToolCalls)
}

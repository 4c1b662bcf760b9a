package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reglet-dev/runnable-sdk/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	echo := filepath.Join(dir, "echo.wasm")
	fail := filepath.Join(dir, "fail.wasm")
	require.NoError(t, os.WriteFile(echo, wasmtest.Echo(), 0o600))
	require.NoError(t, os.WriteFile(fail, wasmtest.Fail(42, "nope"), 0o600))

	path := filepath.Join(dir, "host.yaml")
	doc := fmt.Sprintf("log:\n  level: error\nrunnables:\n  - name: echo\n    path: %s\n  - name: fail\n    path: %s\n", echo, fail)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"runnable-host"}, args...))
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	out, err := runApp(t, "", "schema")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Runnable host configuration", decoded["title"])
}

func TestValidateCommand(t *testing.T) {
	out, err := runApp(t, "", "--config", writeConfig(t), "validate")
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 runnable(s)\n", out)

	_, err = runApp(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "validate")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := runApp(t, "", "-c", cfg, "run", "--data", "hello", "echo")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = runApp(t, "from stdin", "-c", cfg, "run", "echo")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", out)
}

func TestRunCommand_Failures(t *testing.T) {
	cfg := writeConfig(t)

	_, err := runApp(t, "", "-c", cfg, "run", "fail")
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 42, exit.ExitCode())
	assert.Equal(t, "Run Error(42): nope", err.Error())

	_, err = runApp(t, "", "-c", cfg, "run")
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())

	_, err = runApp(t, "", "-c", cfg, "run", "--data", "x", "unknown")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 42, exitCode(42))
	assert.Equal(t, 1, exitCode(-1))
	assert.Equal(t, 1, exitCode(500))
}

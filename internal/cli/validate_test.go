package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pedestrianDir = filepath.Join("..", "harness", "testdata", "machines", "pedestrian")

// writeMachine writes src as the only CUE file of a fresh directory.
func writeMachine(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "machine.cue"), []byte(src), 0o644))
	return dir
}

func executeValidate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_BuiltIn(t *testing.T) {
	out, err := executeValidate(t, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ stoplight.cue valid")
	assert.Contains(t, out, "stoplight")
	assert.Contains(t, out, "crosswalk")
}

func TestValidate_Directory(t *testing.T) {
	out, err := executeValidate(t, "text", pedestrianDir)
	require.NoError(t, err)
	assert.Contains(t, out, "valid (2 engines")
}

func TestValidate_DirectoryJSON(t *testing.T) {
	out, err := executeValidate(t, "json", pedestrianDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"stoplight", "crosswalk"}, resp.Data.Engines)
}

func TestValidate_UnknownTarget(t *testing.T) {
	dir := writeMachine(t, `
package bad

engine: a: transitions: [
	{from: "Init", event: "Start", to: "On", entry: [{emit: "Ping", to: "nobody"}]},
]
`)

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E204")
	assert.Contains(t, out, "nobody")
}

func TestValidate_UnknownTargetJSON(t *testing.T) {
	dir := writeMachine(t, `
package bad

engine: a: transitions: [
	{from: "Init", event: "Start", to: "On", entry: [{emit: "Ping", to: "nobody"}]},
]
`)

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E204", resp.Error.Code)
}

func TestValidate_WarningsDoNotFail(t *testing.T) {
	dir := writeMachine(t, `
package dup

engine: a: transitions: [
	{from: "Init", event: "Start", to: "On"},
	{from: "Init", event: "Start", to: "Off"},
]
`)

	out, err := executeValidate(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "warning E203")
	assert.Contains(t, out, "valid (1 engines")
}

func TestValidate_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing directory", "/nonexistent/fsmrt/config", "E005"},
		{"empty directory", t.TempDir(), "E003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeValidate(t, "text", tt.dir)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestValidate_TooManyArgs(t *testing.T) {
	_, err := executeValidate(t, "text", "a", "b")
	require.Error(t, err)
}

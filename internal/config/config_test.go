package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmrt/internal/command"
	"github.com/roach88/fsmrt/internal/fsm"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"stoplight", "crosswalk"}, cfg.EngineNames())
	assert.Empty(t, cfg.Validate())

	sl, ok := cfg.Engine("stoplight")
	require.True(t, ok)
	require.Len(t, sl.Transitions, 6)

	first := sl.Transitions[0]
	assert.Equal(t, fsm.StateInit, first.From)
	assert.Equal(t, fsm.EventStart, first.Event)
	assert.Equal(t, fsm.State("Green"), first.To)
	assert.Equal(t, "Initial -> Green", first.Description)
	require.NotNil(t, first.Entry)
	assert.Equal(t, []fsm.Step{fsm.Emit("crosswalk", "DontWalk")}, first.Entry.Steps)
	assert.Nil(t, first.Exit)

	toRed := sl.Transitions[2]
	require.NotNil(t, toRed.Entry)
	assert.Equal(t, []fsm.Step{
		fsm.Emit("crosswalk", "Walk"),
		fsm.After(6*time.Second, "", fsm.EventTimer),
	}, toRed.Entry.Steps)

	button := sl.Transitions[5]
	assert.Equal(t, fsm.EventButton, button.Event)
	require.NotNil(t, button.Exit)
	assert.Equal(t, []fsm.Step{fsm.Sleep(3 * time.Second)}, button.Exit.Steps)

	require.NotNil(t, cfg.Timer)
	assert.Equal(t, TimerDef{Name: "timer", Target: "stoplight", Event: fsm.EventTimer, Interval: 10 * time.Second}, *cfg.Timer)

	assert.Equal(t, command.Routes{
		fsm.EventStart:  {"stoplight", "crosswalk"},
		fsm.EventButton: {"stoplight"},
	}, cfg.Commands)
}

func TestConfig_Tables(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	tables, err := cfg.Tables()
	require.NoError(t, err)
	require.Len(t, tables, 2)

	tr, ok := tables["crosswalk"].Lookup("Walk", "Blinking")
	require.True(t, ok)
	assert.Equal(t, fsm.State("Blinking"), tr.To)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package test

engine: door: transitions: [
	{from: "Init", event: "Start", to: "Closed"},
	{from: "Closed", event: "Button", to: "Open", entry: [{log: "opening"}, {emit: "Button", after: "2s"}]},
	{from: "Open", event: "Button", to: "Closed"},
]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "door.cue"), []byte(src), 0644))

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Source)
	assert.Equal(t, []string{"door"}, cfg.EngineNames())
	assert.Nil(t, cfg.Timer)
	assert.Empty(t, cfg.Validate())

	door, _ := cfg.Engine("door")
	assert.Equal(t, []fsm.Step{fsm.Log("opening"), fsm.After(2*time.Second, "", fsm.EventButton)}, door.Transitions[1].Entry.Steps)

	// Without a commands block Start reaches everyone and Button reaches
	// engines that handle it.
	assert.Equal(t, command.Routes{
		fsm.EventStart:  {"door"},
		fsm.EventButton: {"door"},
	}, cfg.Commands)
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
		assertLoadCode(t, err, ErrCodeNotFound)
	})

	t.Run("not a directory", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "file.cue")
		require.NoError(t, os.WriteFile(f, []byte("package test"), 0644))
		_, err := LoadDir(f)
		assertLoadCode(t, err, ErrCodeNotFound)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		assertLoadCode(t, err, ErrCodeNoFiles)
	})
}

func TestLoad_EmptyDirMeansDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "stoplight.cue", cfg.Source)
}

func TestLoadSource_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{
			name: "syntax",
			src:  `engine: {`,
			code: ErrCodeBuildFailed,
		},
		{
			name: "missing to",
			src:  `engine: a: transitions: [{from: "Init", event: "Start"}]`,
			code: ErrCodeSchema,
		},
		{
			name: "unknown step shape",
			src:  `engine: a: transitions: [{from: "Init", event: "Start", to: "X", entry: [{jump: "Y"}]}]`,
			code: ErrCodeSchema,
		},
		{
			name: "bad duration",
			src:  `engine: a: transitions: [{from: "Init", event: "Start", to: "X", exit: [{sleep: "soon"}]}]`,
			code: ErrCodeInvalidDuration,
		},
		{
			name: "bad timer interval",
			src: `engine: a: transitions: []
timer: {target: "a", interval: "often"}`,
			code: ErrCodeInvalidDuration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource(tt.name+".cue", []byte(tt.src))
			assertLoadCode(t, err, tt.code)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		codes   []string
		warning bool
	}{
		{
			name:  "no engines",
			src:   `engine: {}`,
			codes: []string{ErrCodeNoEngines},
		},
		{
			name:  "unknown step target",
			src:   `engine: a: transitions: [{from: "Init", event: "Start", to: "X", entry: [{emit: "Go", to: "b"}]}]`,
			codes: []string{ErrCodeUnknownTarget},
		},
		{
			name:  "control event in table",
			src:   `engine: a: transitions: [{from: "Init", event: "Exit", to: "X"}]`,
			codes: []string{ErrCodeInvalidTable},
		},
		{
			name:  "sleep too long",
			src:   `engine: a: transitions: [{from: "Init", event: "Start", to: "X", exit: [{sleep: "10s"}]}]`,
			codes: []string{ErrCodeInvalidTable},
		},
		{
			name: "timer problems",
			src: `engine: a: transitions: []
timer: {name: "a", target: "b", interval: "0s"}`,
			codes: []string{ErrCodeNameCollision, ErrCodeTimerTarget, ErrCodeTimerInterval},
		},
		{
			name: "command target",
			src: `engine: a: transitions: []
commands: Start: ["a", "z"]`,
			codes: []string{ErrCodeCommandTarget},
		},
		{
			name: "duplicate pair",
			src: `engine: a: transitions: [
	{from: "Init", event: "Start", to: "X"},
	{from: "Init", event: "Start", to: "Y"},
]`,
			codes:   []string{ErrCodeDuplicatePair},
			warning: true,
		},
		{
			name:  "timer name is a valid target",
			src:   "engine: a: transitions: [{from: \"Init\", event: \"Start\", to: \"X\", entry: [{emit: \"Exit\", to: \"timer\"}]}]\ntimer: {target: \"a\", interval: \"1s\"}",
			codes: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadSource(tt.name+".cue", []byte(tt.src))
			require.NoError(t, err)

			verrs := cfg.Validate()
			var codes []string
			for _, v := range verrs {
				codes = append(codes, v.Code)
				assert.Equal(t, tt.warning, v.Warning, v.Error())
			}
			assert.Equal(t, tt.codes, codes)

			if tt.warning {
				assert.Empty(t, cfg.Errors())
			}
		})
	}
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())

	_, err2 := LoadSource("pos.cue", []byte("engine: a: transitions: [{from: \"Init\", event: \"Start\"}]"))
	require.Error(t, err2)
	assert.Contains(t, err2.Error(), ErrCodeSchema)
}

func assertLoadCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le), "want *LoadError, got %T: %v", err, err)
	assert.Equal(t, code, le.Code, le.Error())
}

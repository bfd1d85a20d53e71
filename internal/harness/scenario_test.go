package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s := loadTestScenario(t, "button_cycle")

	assert.Equal(t, "button_cycle", s.Name)
	assert.Equal(t, filepath.Join("testdata", "machines", "pedestrian"), s.Config)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, "S", s.Steps[0].Command)
	require.NotNil(t, s.Steps[4].Await)
	assert.Equal(t, time.Second, s.Steps[4].Await.Timeout)
	assert.Equal(t, "Red", s.Expect.States["stoplight"])
	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertDiscardCount, s.Assertions[3].Type)
}

func TestLoadScenario_Tick(t *testing.T) {
	s := loadTestScenario(t, "timer_advances_light")
	assert.Equal(t, 25*time.Millisecond, s.Tick)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	content := "name: s\ndescription: d\nconfig: machines\nsteps:\n  - command: S\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config directory not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: s\ndescription: d\nstep:\n  - command: S\n",
			want: "field step not found",
		},
		{
			name: "missing name",
			yaml: "description: d\nsteps:\n  - command: S\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: s\nsteps:\n  - command: S\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: s\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "two kinds in a step",
			yaml: "name: s\ndescription: d\nsteps:\n  - command: S\n    sleep: 1s\n",
			want: "exactly one of",
		},
		{
			name: "empty step",
			yaml: "name: s\ndescription: d\nsteps:\n  - {}\n",
			want: "exactly one of",
		},
		{
			name: "send without event",
			yaml: "name: s\ndescription: d\nsteps:\n  - send: {target: a}\n",
			want: "send needs target and event",
		},
		{
			name: "await without state",
			yaml: "name: s\ndescription: d\nsteps:\n  - await: {engine: a}\n",
			want: "await needs engine and state",
		},
		{
			name: "unknown assertion",
			yaml: "name: s\ndescription: d\nsteps:\n  - command: S\nassertions:\n  - type: vibes\n    engine: a\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "short trace_order",
			yaml: "name: s\ndescription: d\nsteps:\n  - command: S\nassertions:\n  - type: trace_order\n    engine: a\n    descriptions: [x]\n",
			want: "at least 2 descriptions",
		},
		{
			name: "bad duration",
			yaml: "name: s\ndescription: d\nsteps:\n  - sleep: forever\n",
			want: "failed to parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAwaitTimeout bounds an await step that sets no timeout.
const DefaultAwaitTimeout = 2 * time.Second

// Scenario is a scripted run with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is a directory of CUE machine definitions. Empty means the
	// built-in stoplight/crosswalk definition. Relative paths are resolved
	// against the scenario file.
	Config string `yaml:"config,omitempty"`

	// Tick enables the configured periodic timer with this interval.
	// Zero leaves the timer out.
	Tick time.Duration `yaml:"tick,omitempty"`

	// Steps run in order. The first failing step ends the run.
	Steps []Step `yaml:"steps"`

	// Expect is checked after every engine has stopped.
	Expect Expect `yaml:"expect,omitempty"`

	// Assertions are checked after Expect.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is exactly one of Send, Command, Await or Sleep.
type Step struct {
	Send    *SendStep     `yaml:"send,omitempty"`
	Command string        `yaml:"command,omitempty"`
	Await   *AwaitStep    `yaml:"await,omitempty"`
	Sleep   time.Duration `yaml:"sleep,omitempty"`
}

// SendStep routes one event.
type SendStep struct {
	Target string `yaml:"target"`
	Event  string `yaml:"event"`
}

// AwaitStep waits until an engine reports a state.
type AwaitStep struct {
	Engine  string        `yaml:"engine"`
	State   string        `yaml:"state"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Expect lists final-state and per-engine transition expectations.
type Expect struct {
	// States maps engine name to its expected final state.
	States map[string]string `yaml:"states,omitempty"`

	// Transitions maps engine name to its exact description sequence.
	Transitions map[string][]string `yaml:"transitions,omitempty"`
}

// Assertion is a looser check on one engine's trace.
type Assertion struct {
	Type         string   `yaml:"type"`
	Engine       string   `yaml:"engine"`
	Description  string   `yaml:"description,omitempty"`
	Descriptions []string `yaml:"descriptions,omitempty"`
	Count        int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertDiscardCount  = "discard_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}
	if scenario.Config != "" {
		if _, err := os.Stat(scenario.Config); err != nil {
			return nil, fmt.Errorf("invalid scenario: config directory not found: %s", scenario.Config)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml and .yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Tick < 0 {
		return fmt.Errorf("tick must not be negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	kinds := 0
	if step.Send != nil {
		kinds++
		if step.Send.Target == "" || step.Send.Event == "" {
			return fmt.Errorf("send needs target and event")
		}
	}
	if step.Command != "" {
		kinds++
	}
	if step.Await != nil {
		kinds++
		if step.Await.Engine == "" || step.Await.State == "" {
			return fmt.Errorf("await needs engine and state")
		}
	}
	if step.Sleep != 0 {
		kinds++
		if step.Sleep < 0 {
			return fmt.Errorf("sleep must not be negative")
		}
	}

	if kinds != 1 {
		return fmt.Errorf("exactly one of send, command, await, sleep is required (got %d)", kinds)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	if a.Engine == "" {
		return fmt.Errorf("engine is required")
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Description == "" {
			return fmt.Errorf("trace_contains requires description")
		}
	case AssertTraceOrder:
		if len(a.Descriptions) < 2 {
			return fmt.Errorf("trace_order requires at least 2 descriptions")
		}
	case AssertTraceCount, AssertDiscardCount:
		if a.Count < 0 {
			return fmt.Errorf("%s requires a non-negative count", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

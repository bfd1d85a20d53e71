// Package config loads machine definitions written in CUE.
//
// A definition names engines and their transition tables, an optional
// periodic timer, and which engines receive the Start and Button commands:
//
//	engine: stoplight: transitions: [
//		{from: "Init", event: "Start", to: "Green", entry: [{emit: "DontWalk", to: "crosswalk"}]},
//	]
//	timer: {target: "stoplight", interval: "10s"}
//	commands: Start: ["stoplight", "crosswalk"]
//
// Sources are unified with an embedded schema, decoded into Go values, and
// then checked by Validate. Engines keep the order in which they are
// declared; transitions keep their list order, which is the order ties are
// broken in.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fsmrt/internal/command"
	"github.com/roach88/fsmrt/internal/fsm"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed stoplight.cue
var defaultSource []byte

// Config is a decoded machine definition.
type Config struct {
	// Source names where the definition came from (a directory or file name).
	Source string

	// Engines in declaration order.
	Engines []EngineDef

	// Timer is nil when no periodic timer is configured.
	Timer *TimerDef

	// Commands maps Start and Button to their targets.
	Commands command.Routes
}

// EngineDef is one engine's name and table.
type EngineDef struct {
	Name        string
	Transitions []fsm.Transition
	Pos         token.Pos
}

// TimerDef configures the periodic ticker.
type TimerDef struct {
	Name     string
	Target   string
	Event    fsm.Event
	Interval time.Duration
}

// Engine returns the engine definition called name.
func (c *Config) Engine(name string) (EngineDef, bool) {
	for _, e := range c.Engines {
		if e.Name == name {
			return e, true
		}
	}
	return EngineDef{}, false
}

// EngineNames returns engine names in declaration order.
func (c *Config) EngineNames() []string {
	names := make([]string, len(c.Engines))
	for i, e := range c.Engines {
		names[i] = e.Name
	}
	return names
}

// Tables builds one transition table per engine.
func (c *Config) Tables() (map[string]*fsm.Table, error) {
	tables := make(map[string]*fsm.Table, len(c.Engines))
	for _, e := range c.Engines {
		if _, dup := tables[e.Name]; dup {
			return nil, fmt.Errorf("engine %q defined twice", e.Name)
		}
		tables[e.Name] = fsm.NewTable(e.Transitions)
	}
	return tables, nil
}

// Default returns the built-in stoplight/crosswalk definition.
func Default() (*Config, error) {
	return LoadSource("stoplight.cue", defaultSource)
}

// LoadSource compiles a single CUE source.
func LoadSource(name string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	return decode(ctx, name, v)
}

// LoadDir loads every CUE file in dir as one instance.
func LoadDir(dir string) (*Config, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	return decode(ctx, dir, v)
}

// Load loads dir, or the built-in definition when dir is empty.
func Load(dir string) (*Config, error) {
	if dir == "" {
		return Default()
	}
	return LoadDir(dir)
}

// FindCUEFiles returns the .cue files directly in dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

type rawStep struct {
	Emit  string `json:"emit"`
	To    string `json:"to"`
	After string `json:"after"`
	Sleep string `json:"sleep"`
	Log   string `json:"log"`
}

type rawTransition struct {
	From        string    `json:"from"`
	Event       string    `json:"event"`
	To          string    `json:"to"`
	Exit        []rawStep `json:"exit"`
	Entry       []rawStep `json:"entry"`
	Description string    `json:"description"`
}

type rawTimer struct {
	Name     string `json:"name"`
	Target   string `json:"target"`
	Event    string `json:"event"`
	Interval string `json:"interval"`
}

func decode(ctx *cue.Context, source string, v cue.Value) (*Config, error) {
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fromCUE(ErrCodeGeneric, err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}

	cfg := &Config{Source: source}

	engines := v.LookupPath(cue.ParsePath("engine"))
	if engines.Exists() {
		iter, err := engines.Fields()
		if err != nil {
			return nil, fromCUE(ErrCodeDecode, err)
		}
		for iter.Next() {
			def, err := decodeEngine(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			cfg.Engines = append(cfg.Engines, def)
		}
	}

	if tv := v.LookupPath(cue.ParsePath("timer")); tv.Exists() {
		var raw rawTimer
		if err := tv.Decode(&raw); err != nil {
			return nil, fromCUE(ErrCodeDecode, err)
		}
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidDuration, Message: fmt.Sprintf("timer interval: %v", err), Pos: tv.Pos()}
		}
		cfg.Timer = &TimerDef{
			Name:     raw.Name,
			Target:   raw.Target,
			Event:    fsm.Event(raw.Event),
			Interval: interval,
		}
	}

	if cv := v.LookupPath(cue.ParsePath("commands")); cv.Exists() {
		var raw map[string][]string
		if err := cv.Decode(&raw); err != nil {
			return nil, fromCUE(ErrCodeDecode, err)
		}
		cfg.Commands = make(command.Routes, len(raw))
		for ev, targets := range raw {
			cfg.Commands[fsm.Event(ev)] = targets
		}
	} else {
		cfg.Commands = defaultRoutes(cfg.Engines)
	}

	return cfg, nil
}

func decodeEngine(name string, v cue.Value) (EngineDef, error) {
	def := EngineDef{Name: name, Pos: v.Pos()}

	list, err := v.LookupPath(cue.ParsePath("transitions")).List()
	if err != nil {
		return def, fromCUE(ErrCodeDecode, err)
	}

	for list.Next() {
		item := list.Value()
		var raw rawTransition
		if err := item.Decode(&raw); err != nil {
			return def, fromCUE(ErrCodeDecode, err)
		}

		exit, err := decodeAction(raw.Exit, item.LookupPath(cue.ParsePath("exit")))
		if err != nil {
			return def, err
		}
		entry, err := decodeAction(raw.Entry, item.LookupPath(cue.ParsePath("entry")))
		if err != nil {
			return def, err
		}

		def.Transitions = append(def.Transitions, fsm.Transition{
			From:        fsm.State(raw.From),
			Event:       fsm.Event(raw.Event),
			Exit:        exit,
			To:          fsm.State(raw.To),
			Entry:       entry,
			Description: raw.Description,
		})
	}
	return def, nil
}

func decodeAction(raw []rawStep, at cue.Value) (*fsm.Action, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	steps := make([]fsm.Step, 0, len(raw))
	for _, r := range raw {
		switch {
		case r.Sleep != "":
			d, err := time.ParseDuration(r.Sleep)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeInvalidDuration, Message: fmt.Sprintf("sleep: %v", err), Pos: at.Pos()}
			}
			steps = append(steps, fsm.Sleep(d))

		case r.Emit != "" && r.After != "":
			d, err := time.ParseDuration(r.After)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeInvalidDuration, Message: fmt.Sprintf("after: %v", err), Pos: at.Pos()}
			}
			steps = append(steps, fsm.After(d, r.To, fsm.Event(r.Emit)))

		case r.Emit != "":
			steps = append(steps, fsm.Emit(r.To, fsm.Event(r.Emit)))

		default:
			steps = append(steps, fsm.Log(r.Log))
		}
	}
	return fsm.Do(steps...), nil
}

// defaultRoutes sends Start to every engine and Button to every engine whose
// table mentions it.
func defaultRoutes(engines []EngineDef) command.Routes {
	routes := command.Routes{}
	for _, e := range engines {
		routes[fsm.EventStart] = append(routes[fsm.EventStart], e.Name)
		for _, tr := range e.Transitions {
			if tr.Event == fsm.EventButton {
				routes[fsm.EventButton] = append(routes[fsm.EventButton], e.Name)
				break
			}
		}
	}
	return routes
}

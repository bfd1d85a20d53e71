// Package harness runs scripted scenarios against a live runtime.
//
// A scenario boots a runtime from a machine definition, drives it with
// routed events and operator commands, waits for engines to reach given
// states, and then checks the final states and each engine's transitions.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: button_cycle
//	description: "Button press walks the pedestrian"
//	config: ../machines/pedestrian   # optional, relative to the file
//	tick: 20ms                       # optional, enables the periodic timer
//	steps:
//	  - command: "S"
//	  - await: {engine: stoplight, state: Green}
//	  - send: {target: stoplight, event: Button}
//	  - sleep: 50ms
//	expect:
//	  states:
//	    stoplight: Red
//	  transitions:
//	    stoplight: ["Initial -> Green", "Green -> Yellow (Button)"]
//	assertions:
//	  - type: trace_contains
//	    engine: crosswalk
//	    description: "DontWalk -> Walk"
//
// # Assertion Types
//
//   - trace_contains: the engine made a transition with this description
//   - trace_order: the descriptions occur in this order (gaps allowed)
//   - trace_count: the engine made exactly Count transitions, or exactly
//     Count with the given description
//   - discard_count: the engine discarded exactly Count events
//
// # Determinism
//
// Engines run concurrently, so the harness never compares interleavings
// across engines. Traces are grouped per engine, where order is fixed by
// each engine's inbox. Use await steps before any send whose outcome
// depends on another engine having caught up.
package harness

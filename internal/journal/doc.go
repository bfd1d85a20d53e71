// Package journal stores transition and display records in SQLite.
//
// The journal is a diagnostic sink. Each process run gets a row in runs,
// keyed by a time-ordered UUID; engine records hang off it. Nothing is ever
// read back into a running engine: engines always start in Init.
//
// # Database Configuration
//
//   - WAL mode: `fsmrt trace` can read while a run is writing
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Records must belong to a known run
//
// Queries order by (elapsed_ms, engine, seq) so a trace reads the same way
// every time it is printed.
package journal

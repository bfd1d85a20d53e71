package config

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error code constants for loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeSchema      = "E007" // Does not satisfy the schema
	ErrCodeDecode      = "E008" // Value could not be decoded
)

// Error code constants for validation.
const (
	ErrCodeNoEngines       = "E201" // No engines defined
	ErrCodeInvalidTable    = "E202" // Table fails structural checks
	ErrCodeDuplicatePair   = "E203" // (state, event) declared twice; first wins
	ErrCodeUnknownTarget   = "E204" // Step addresses an unregistered name
	ErrCodeTimerTarget     = "E205" // Timer target is not an engine
	ErrCodeTimerInterval   = "E206" // Timer interval not positive
	ErrCodeCommandTarget   = "E207" // Command routes to an unregistered name
	ErrCodeNameCollision   = "E208" // Timer name collides with an engine
	ErrCodeInvalidDuration = "E209" // Duration string does not parse
)

// LoadError is a failure to turn CUE sources into a Config.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationError is a semantic problem in a loaded Config.
// Warnings are reported but do not make a Config unusable.
type ValidationError struct {
	Field   string
	Code    string
	Message string
	Warning bool
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// fromCUE converts a CUE error into a LoadError carrying the first position.
func fromCUE(code string, err error) *LoadError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmrt/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// Issue is one validation finding in JSON output.
type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the JSON output structure for validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Source   string   `json:"source,omitempty"`
	Engines  []string `json:"engines,omitempty"`
	Errors   []Issue  `json:"errors,omitempty"`
	Warnings []Issue  `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [config-dir]",
		Short: "Validate machine definitions without running them",
		Long: `Load the CUE machine definitions in a directory, check them against the
schema and cross-check every target name, timer and command route.

Warnings (such as a state/event pair declared twice) are printed but do
not fail validation. Without a directory the built-in definition is checked.

Examples:
  fsmrt validate ./machines
  fsmrt validate ./machines --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(opts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if dir == "" {
		formatter.VerboseLog("validating built-in definition")
	} else {
		formatter.VerboseLog("validating %s", dir)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	var result ValidationResult
	result.Source = cfg.Source
	result.Engines = cfg.EngineNames()
	for _, v := range cfg.Validate() {
		issue := Issue{Field: v.Field, Code: v.Code, Message: v.Message}
		if v.Warning {
			result.Warnings = append(result.Warnings, issue)
		} else {
			result.Errors = append(result.Errors, issue)
		}
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		return outputValidationJSON(formatter, result)
	}
	return outputValidationText(formatter, result)
}

// outputLoadError reports a config that could not be loaded at all.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code := config.ErrCodeGeneric
	var loadErr *config.LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}

	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "load config", err)
}

func outputValidationJSON(formatter *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return formatter.Success(result)
	}

	response := CLIResponse{
		Status: "error",
		Data:   result,
		Error: &CLIError{
			Code:    result.Errors[0].Code,
			Message: result.Errors[0].Message,
		},
	}
	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

func outputValidationText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer

	for _, v := range result.Warnings {
		fmt.Fprintf(w, "warning %s %s: %s\n", v.Code, v.Field, v.Message)
	}

	if result.Valid {
		fmt.Fprintf(w, "✓ %s valid (%d engines: %v)\n", result.Source, len(result.Engines), result.Engines)
		return nil
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, v := range result.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", v.Code, v.Field, v.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

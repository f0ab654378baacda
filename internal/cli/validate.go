package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/batchfile"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                    `json:"valid"`
	Specs  int                     `json:"specs"`
	Errors []asset.ValidationError `json:"errors,omitempty"`
}

func (r ValidationResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Batch valid (%d specs)\n", r.Specs)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <batch-file>",
		Short: "Validate a batch file without writing",
		Long: `Validate a YAML or JSON batch file without touching the database.

Checks the document shape, then every spec and edge the same way upsert does
before it opens a transaction. References to assets outside the batch are
only checked for format; whether they exist is decided at write time.

Use "-" to read the batch from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	specs, err := loadBatch(path, cmd)
	if err != nil {
		return outputValidateError(formatter, ErrCodeFileLoad, err.Error(), nil)
	}
	formatter.VerboseLog("Loaded %d spec(s) from %s", len(specs), path)

	if problems := asset.Validate(specs); len(problems) > 0 {
		return outputValidationErrors(formatter, problems)
	}

	return formatter.Success(ValidationResult{Valid: true, Specs: len(specs)})
}

// loadBatch reads a batch file, or stdin for "-".
func loadBatch(path string, cmd *cobra.Command) ([]asset.WriteSpec, error) {
	if path == "-" {
		return batchfile.Read(cmd.InOrStdin())
	}
	return batchfile.Load(path)
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation problem.
func outputValidationErrors(formatter *OutputFormatter, errs []asset.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Index >= 0 {
			fmt.Fprintf(formatter.Writer, "specs[%d]\n", err.Index)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

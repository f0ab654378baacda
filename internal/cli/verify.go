package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/assetgraph/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Project string
}

// VerifyResult is the audit outcome.
type VerifyResult struct {
	Valid      bool              `json:"valid"`
	Project    string            `json:"project,omitempty"`
	Violations []store.Violation `json:"violations"`
	EdgeCounts map[string]int64  `json:"edge_counts,omitempty"`
}

func (r VerifyResult) renderText(w io.Writer) {
	scope := "all projects"
	if r.Project != "" {
		scope = "project " + r.Project
	}
	if r.Valid {
		fmt.Fprintf(w, "✓ No violations in %s\n", scope)
	} else {
		fmt.Fprintf(w, "✗ %d violation(s) in %s\n", len(r.Violations), scope)
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  %s %s: %s\n", v.Check, v.Ref, v.Detail)
		}
	}
	for _, edgeType := range slices.Sorted(maps.Keys(r.EdgeCounts)) {
		fmt.Fprintf(w, "  edges %s: %d\n", edgeType, r.EdgeCounts[edgeType])
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit stored versions and edges",
		Long: `Audit the store for rows that break the version chain: more than one
current version, missing current versions, version gaps, broken
supersedes links and edges whose endpoints are missing.

Exits with code 1 when violations are found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "limit asset checks to one project")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(cmd, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := commandContext(cmd)
	violations, err := sess.store.Verify(ctx, opts.Project)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to verify store", err)
	}

	result := VerifyResult{
		Valid:      len(violations) == 0,
		Project:    opts.Project,
		Violations: violations,
	}
	if opts.Project != "" {
		if result.EdgeCounts, err = sess.store.EdgeTypeCounts(ctx, opts.Project); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to count edges", err)
		}
	}

	if !result.Valid {
		if formatter.Format == "json" {
			if err := formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error: &CLIError{
					Code:    ErrCodeViolations,
					Message: fmt.Sprintf("%d violation(s) found", len(violations)),
				},
			}); err != nil {
				return err
			}
		} else {
			result.renderText(formatter.Writer)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d violation(s) found", len(violations)))
	}

	return formatter.Success(result)
}

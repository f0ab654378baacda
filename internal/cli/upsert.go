package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/metrics"
	"github.com/roach88/assetgraph/internal/store"
)

// UpsertOptions holds flags for the upsert command.
type UpsertOptions struct {
	*RootOptions

	// MetricsFile receives batch metrics in Prometheus text format, for
	// node_exporter's textfile collector.
	MetricsFile string
}

// UpsertResult is the committed batch, with each outcome labeled by its key.
type UpsertResult struct {
	*asset.BatchResult
	keys []string
}

func (r UpsertResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Batch committed (%d specs, %d attempt(s))\n",
		len(r.Outcomes), r.Attempts)
	for i, o := range r.Outcomes {
		fmt.Fprintf(w, "  [%d] %-10s %s v%d %s\n", o.Index, o.Action, r.keys[i], o.Version, o.ID)
	}
	fmt.Fprintf(w, "Edges: %d created, %d skipped\n", r.EdgesCreated, r.EdgesSkipped)
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upsert <batch-file>",
		Short: "Write a batch of assets and edges",
		Long: `Write every spec and edge in a batch file in one transaction.

Unchanged content is a no-op, changed content creates a new version, and
edges that already exist are skipped, so rerunning a batch is safe.
If any spec fails, nothing is written.

Example:
  assetgraph upsert --db ./assets.db batch.yaml
  extractor | assetgraph upsert --format json -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpsert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

func runUpsert(opts *UpsertOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	specs, err := loadBatch(path, cmd)
	if err != nil {
		return outputValidateError(formatter, ErrCodeFileLoad, err.Error(), nil)
	}
	formatter.VerboseLog("Loaded %d spec(s) from %s", len(specs), path)

	var extra []store.Option
	var reg *prometheus.Registry
	if opts.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		observer, err := metrics.NewObserver(metrics.DefaultNamespace, reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		extra = append(extra, store.WithHooks(observer))
	}

	sess, err := openSession(cmd, opts.RootOptions, formatter, extra...)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, upsertErr := sess.store.UpsertAssetsAndEdges(commandContext(cmd), specs)

	if reg != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			formatter.VerboseLog("failed to write metrics: %v", err)
		}
	}

	if upsertErr != nil {
		return outputBatchError(formatter, upsertErr)
	}

	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = describeTarget(s.ProjectID, s.IdempotencyKey)
	}
	return formatter.Success(UpsertResult{BatchResult: res, keys: keys})
}

// outputBatchError reports a rejected batch. Validation problems are listed
// in full; other kinds report their reason.
func outputBatchError(formatter *OutputFormatter, err error) error {
	var be *asset.BatchError
	if !errors.As(err, &be) {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "batch rejected", err)
	}

	if be.Kind == asset.KindValidation && len(be.Problems) > 0 {
		return outputValidationErrors(formatter, be.Problems)
	}

	details := map[string]any{"kind": be.Kind}
	if be.Index >= 0 {
		details["index"] = be.Index
	}
	_ = formatter.Error(batchErrorCode(be.Kind), be.Error(), details)
	return WrapExitError(ExitFailure, "batch rejected", err)
}

func batchErrorCode(kind asset.Kind) string {
	switch kind {
	case asset.KindReference:
		return ErrCodeReference
	case asset.KindConflict:
		return ErrCodeConflict
	case asset.KindStorage:
		return ErrCodeStorage
	default:
		return ErrCodeGeneric
	}
}

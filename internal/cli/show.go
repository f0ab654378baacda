package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/payload"
	"github.com/roach88/assetgraph/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Project string
	Key     string
}

// AssetView is an asset row as printed by show.
type AssetView struct {
	asset.Asset
}

func (v AssetView) renderText(w io.Writer) {
	a := v.Asset
	state := "superseded"
	if a.IsCurrent {
		state = "current"
	}
	fmt.Fprintf(w, "%s/%s v%d (%s)\n", a.ProjectID, a.IdempotencyKey, a.Version, state)
	fmt.Fprintf(w, "  id:           %s\n", a.ID)
	fmt.Fprintf(w, "  asset_uid:    %s\n", a.AssetUID)
	if a.SupersedesAssetID != "" {
		fmt.Fprintf(w, "  supersedes:   %s\n", a.SupersedesAssetID)
	}
	fmt.Fprintf(w, "  type:         %s\n", typeLabel(a))
	if a.Name != "" {
		fmt.Fprintf(w, "  name:         %s\n", a.Name)
	}
	if a.Description != "" {
		fmt.Fprintf(w, "  description:  %s\n", a.Description)
	}
	fmt.Fprintf(w, "  content_hash: %s\n", a.ContentHash)
	fmt.Fprintf(w, "  updated_at:   %s\n", a.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  metadata:     %s\n", canonicalText(a.Metadata))
	fmt.Fprintf(w, "  content:      %s\n", canonicalText(a.Content))
}

// HistoryView lists every version of one asset.
type HistoryView []asset.Asset

func (h HistoryView) renderText(w io.Writer) {
	if len(h) == 0 {
		fmt.Fprintln(w, "No versions found")
		return
	}
	for _, a := range h {
		marker := " "
		if a.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(w, "%s v%-3d %s %s %s\n", marker, a.Version, a.ID, a.CreatedAt.Format(time.RFC3339), shortHash(a.ContentHash))
	}
}

// EdgesView lists edges of one version row.
type EdgesView []asset.Edge

func (e EdgesView) renderText(w io.Writer) {
	if len(e) == 0 {
		fmt.Fprintln(w, "No edges found")
		return
	}
	for _, edge := range e {
		fmt.Fprintf(w, "%d %s -[%s]-> %s\n", edge.ID, edge.FromAssetID, edge.EdgeType, edge.ToAssetID)
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current version of an asset",
		Long: `Show the current version of the asset with the given project and
idempotency key.

Example:
  assetgraph show --project P1 --key "doc_extract:P1:D1"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project id (required)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key (required)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(cmd, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	a, err := sess.store.Current(commandContext(cmd), opts.Project, opts.Key)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("no current version of %s", describeTarget(opts.Project, opts.Key))
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read asset", err)
	}

	return formatter.Success(AssetView{a})
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <asset-uid>",
		Short: "List every version of an asset",
		Long: `List every version of an asset, oldest first. The current version
is marked with *.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runHistory(opts *RootOptions, uid string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(cmd, opts, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	versions, err := sess.store.History(commandContext(cmd), uid)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	return formatter.Success(HistoryView(versions))
}

// EdgesOptions holds flags for the edges command.
type EdgesOptions struct {
	*RootOptions
	Incoming bool
}

// NewEdgesCommand creates the edges command.
func NewEdgesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EdgesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edges <asset-id>",
		Short: "List edges of a version row",
		Long: `List the edges leaving a version row, or arriving at it with --in.

Edges point at the version that was current when they were written, so
the id is a version id, not an asset_uid.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdges(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Incoming, "in", false, "list incoming edges instead of outgoing")

	return cmd
}

func runEdges(opts *EdgesOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(cmd, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := commandContext(cmd)
	var edges []asset.Edge
	if opts.Incoming {
		edges, err = sess.store.EdgesTo(ctx, id)
	} else {
		edges, err = sess.store.EdgesFrom(ctx, id)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read edges", err)
	}
	return formatter.Success(EdgesView(edges))
}

func typeLabel(a asset.Asset) string {
	if a.Subtype == "" {
		return a.Type
	}
	return a.Type + "/" + a.Subtype
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func canonicalText(obj payload.Object) string {
	if obj == nil {
		return "{}"
	}
	data, err := payload.MarshalCanonical(obj)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

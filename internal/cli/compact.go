package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scout-agent/internal/infrastructure/config"
	"scout-agent/internal/infrastructure/store"
)

type CompactOptions struct {
	StoreOptions
	Blobs string
}

// CompactResult reports what a compaction removed.
type CompactResult struct {
	RunID   string `json:"run_id"`
	Removed int    `json:"removed"`
}

func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompactOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "compact <run-id>...",
		Short: "Drop screenshots of finished runs",
		Long: `Clear the heavy artifact references of finished runs and delete the files they
point to. Step records stay; only their artifact reference is emptied. Runs that
have not finished are refused.

Examples:
  scout compact 3f6c...
  scout compact 3f6c... 9a01... --blobs ./artifacts`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Blobs, "blobs", "", "artifact directory (default \"artifacts\")")

	return cmd
}

func runCompact(opts *CompactOptions, cmd *cobra.Command, runIDs []string) error {
	ctx := context.Background()

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := store.NewFileBlobStore(config.StoreConfig{Blobs: opts.Blobs}.GetBlobs())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open artifact directory", err)
	}

	results := make([]CompactResult, 0, len(runIDs))
	for _, runID := range runIDs {
		refs, err := st.Compact(ctx, runID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to compact run %s", runID), err)
		}
		if err := blobs.Remove(refs); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to remove artifacts of run %s", runID), err)
		}
		results = append(results, CompactResult{RunID: runID, Removed: len(refs)})
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(results, func(w io.Writer) {
		for _, r := range results {
			fmt.Fprintf(w, "%s: removed %d artifacts\n", r.RunID, r.Removed)
		}
	})
}

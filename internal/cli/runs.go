package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"scout-agent/internal/domain/entity"
)

type RunsOptions struct {
	StoreOptions
	RunID   string
	Records bool
}

// RunDetail is a single run as shown by runs --run.
type RunDetail struct {
	Report  *entity.RunReport `json:"report,omitempty"`
	Status  entity.RunStatus  `json:"status"`
	Records []entity.Row      `json:"records,omitempty"`
}

func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs or show one run's report",
		Long: `List every run in the database, newest first. With --run, print that run's
terminal report and, with --records, the records it stored.

Examples:
  scout runs
  scout runs --run 3f6c... --records --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	cmd.Flags().BoolVar(&opts.Records, "records", false, "include stored records (with --run)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if runs == nil {
			runs = []entity.RunInfo{}
		}
		return out.Success(runs, func(w io.Writer) { printRuns(w, runs) })
	}

	report, err := st.Report(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	detail := RunDetail{Report: report, Status: entity.RunExecuting}
	if report != nil {
		detail.Status = report.Status
	}
	if opts.Records {
		detail.Records, err = st.Records(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load records", err)
		}
	}
	return out.Success(detail, func(w io.Writer) { printRunDetail(w, opts.RunID, detail) })
}

func printRuns(w io.Writer, runs []entity.RunInfo) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-9s %s  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.RunID, r.Goal)
	}
}

func printRunDetail(w io.Writer, runID string, d RunDetail) {
	if d.Report == nil {
		fmt.Fprintf(w, "Run %s has not finished.\n", runID)
	} else {
		r := d.Report
		fmt.Fprintf(w, "Run:         %s\n", r.RunID)
		fmt.Fprintf(w, "Goal:        %s\n", r.Goal)
		fmt.Fprintf(w, "Status:      %s\n", r.Status)
		fmt.Fprintf(w, "Explanation: %s\n", r.Explanation)
		fmt.Fprintf(w, "Records:     %d\n", r.PersistedCount)
		fmt.Fprintf(w, "Invocations: %d\n", r.Invocations)
		fmt.Fprintf(w, "Plan v%d:\n", r.Plan.Version)
		for _, s := range r.Plan.Steps {
			fmt.Fprintf(w, "  #%d %-8s %-9s %s\n", s.ID, s.Kind, s.Status, s.Goal)
		}
		if len(r.Visits) > 0 {
			fmt.Fprintln(w, "Visits:")
			for _, v := range r.Visits {
				fmt.Fprintf(w, "  %-10s %s\n", v.Relevance, v.ResourceID)
			}
		}
	}
	for _, row := range d.Records {
		fmt.Fprintln(w, formatRow(row))
	}
}

// formatRow renders a record as name=value pairs in field order.
func formatRow(row entity.Row) string {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, row[name]))
	}
	return strings.Join(parts, "  ")
}

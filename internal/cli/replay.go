package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scout-agent/internal/domain/entity"
)

type ReplayOptions struct {
	StoreOptions
	RunID string
	Actor string
}

func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Print a run's step log in turn order",
		Long: `Print every step record of a run in the order it was appended: the orchestrator's
plan and fold records interleaved with the sub-agents' turns.

Examples:
  scout replay 3f6c...
  scout replay 3f6c... --actor EXTRACT_AGENT --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RunID = args[0]
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "only show records of this actor")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	steps, err := st.Steps(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read step log", err)
	}
	if len(steps) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no step records for run %s", opts.RunID))
	}

	steps = filterActor(steps, entity.Actor(opts.Actor))

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(steps, func(w io.Writer) { printSteps(w, steps, opts.Verbose) })
}

func filterActor(steps []entity.StepRecord, actor entity.Actor) []entity.StepRecord {
	if actor == "" {
		return steps
	}
	out := make([]entity.StepRecord, 0, len(steps))
	for _, s := range steps {
		if s.Actor == actor {
			out = append(out, s)
		}
	}
	return out
}

func printSteps(w io.Writer, steps []entity.StepRecord, verbose bool) {
	for _, s := range steps {
		fmt.Fprintf(w, "%4d %-16s %s\n", s.TurnIndex, s.Actor, s.ChosenAction)
		if verbose {
			if s.ReflectionText != "" {
				fmt.Fprintf(w, "     %s\n", s.ReflectionText)
			}
			fmt.Fprintf(w, "     state %s\n", s.ObservedStateDigest)
			if s.HeavyArtifactRef != "" {
				fmt.Fprintf(w, "     artifact %s\n", s.HeavyArtifactRef)
			}
		}
	}
}

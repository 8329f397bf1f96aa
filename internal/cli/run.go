package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scout-agent/internal/application/port/input"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/di"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/config"
	"scout-agent/internal/infrastructure/env"
	"scout-agent/internal/infrastructure/userinteraction"
)

type RunOptions struct {
	*RootOptions
	ConfigPath string
	Goals      []string
	Fields     []string
	Database   string
	Headed     bool
}

// RunOutcome is one goal's result as printed by the run command.
type RunOutcome struct {
	Goal   string            `json:"goal"`
	Report *entity.RunReport `json:"report,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and execute scraping runs",
		Long: `Run one scraping run per goal. Goals come from the run file, from --goal flags,
or both; the flags replace the file's goals when given. Runs share the database
but each gets its own browser session and runs concurrently.

Exit codes:
  0 - Every run finished DONE
  1 - At least one run finished FAILED or could not start
  2 - Command error (bad flags, unreadable run file, database errors)

Examples:
  scout run --config courses.yaml
  scout run --goal "collect every course in the 2025 catalog" --field title:string --field credits:number
  scout run --config courses.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML run file")
	cmd.Flags().StringArrayVarP(&opts.Goals, "goal", "g", nil, "goal to run (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Fields, "field", "f", nil, "output field as name:type (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.Headed, "headed", false, "show the browser window")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command) error {
	envService := env.NewEnvService(opts.EnvDir)

	cfg, err := resolveRunConfig(opts, envService)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid run configuration", err)
	}
	if len(cfg.Goals) == 0 {
		return NewExitError(ExitCommandError, "no goals: pass --goal or list goals in the run file")
	}
	if len(cfg.Schema) == 0 {
		return NewExitError(ExitCommandError, "no output schema: pass --field or set schema in the run file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, di.Config{
		Run:      cfg,
		APIKey:   envService.Get(env.KeyOpenRouterKey),
		Verbose:  opts.Verbose,
		Console:  cmd.ErrOrStderr(),
		Progress: userinteraction.NewConsoleProgress(cmd.ErrOrStderr(), opts.Verbose),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialise", err)
	}
	defer container.Close()

	container.Logger.Info("Starting runs", "goals", len(cfg.Goals), "envFiles", envService.Loaded())

	outcomes := runGoals(ctx, container.Runner, cfg.Goals, cfg.OutputSchema())

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(outcomes, func(w io.Writer) { printOutcomes(w, outcomes) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	failed := 0
	for _, o := range outcomes {
		if o.Report == nil || o.Report.Status != entity.RunDone {
			failed++
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d runs failed", failed, len(outcomes)))
	}
	return nil
}

// resolveRunConfig layers the run file, the environment and the flags, in that order.
func resolveRunConfig(opts *RunOptions, envService output.ConfigPort) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnv(cfg, envService)

	if len(opts.Goals) > 0 {
		cfg.Goals = opts.Goals
	}
	if len(opts.Fields) > 0 {
		schema, err := parseFields(opts.Fields)
		if err != nil {
			return nil, err
		}
		cfg.Schema = schema
	}
	if opts.Database != "" {
		cfg.Store.Database = opts.Database
	}
	if opts.Headed {
		headless := false
		cfg.Browser.Headless = &headless
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config, envService output.ConfigPort) {
	if v := envService.Get(env.KeyOpenRouterModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := envService.Get(env.KeyLLMBackend); v != "" {
		cfg.LLM.Backend = v
	}
	if envService.Get(env.KeyBrowserHeadless) != "" {
		headless := envService.GetBool(env.KeyBrowserHeadless, true)
		cfg.Browser.Headless = &headless
	}
	if v := envService.Get(env.KeyDatabase); v != "" {
		cfg.Store.Database = v
	}
}

// parseFields turns name:type pairs into a schema map. A bare name means string.
func parseFields(fields []string) (map[string]string, error) {
	schema := make(map[string]string, len(fields))
	for _, f := range fields {
		name, typ, found := strings.Cut(f, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("field %q has no name", f)
		}
		if !found {
			typ = string(entity.FieldString)
		}
		if _, dup := schema[name]; dup {
			return nil, fmt.Errorf("field %q given twice", name)
		}
		schema[name] = strings.ToLower(strings.TrimSpace(typ))
	}
	return schema, nil
}

// runGoals executes every goal concurrently and returns the outcomes in goal order.
func runGoals(ctx context.Context, runner input.RunExecutor, goals []string, schema entity.Schema) []RunOutcome {
	outcomes := make([]RunOutcome, len(goals))

	var wg sync.WaitGroup
	for i, goal := range goals {
		wg.Add(1)
		go func(i int, goal string) {
			defer wg.Done()
			outcomes[i].Goal = goal
			report, err := runner.Execute(ctx, input.RunRequest{Goal: goal, Schema: schema.Clone()})
			if err != nil {
				outcomes[i].Error = err.Error()
				return
			}
			outcomes[i].Report = report
		}(i, goal)
	}
	wg.Wait()

	return outcomes
}

func printOutcomes(w io.Writer, outcomes []RunOutcome) {
	for _, o := range outcomes {
		if o.Report == nil {
			fmt.Fprintf(w, "ERROR     %s\n          %s\n", o.Goal, o.Error)
			continue
		}
		r := o.Report
		fmt.Fprintf(w, "%-9s %s  %s\n", r.Status, r.RunID, r.Goal)
		fmt.Fprintf(w, "          %d records, %d invocations, %s\n",
			r.PersistedCount, r.Invocations, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		if r.Explanation != "" {
			fmt.Fprintf(w, "          %s\n", r.Explanation)
		}
	}
}

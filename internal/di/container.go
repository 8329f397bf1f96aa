package di

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"scout-agent/internal/adapter/reasoner"
	"scout-agent/internal/application/port/input"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/application/service"
	"scout-agent/internal/infrastructure/browser/rod"
	"scout-agent/internal/infrastructure/config"
	"scout-agent/internal/infrastructure/env"
	"scout-agent/internal/infrastructure/llm/langchain"
	"scout-agent/internal/infrastructure/llm/openrouter"
	"scout-agent/internal/infrastructure/logger"
	"scout-agent/internal/infrastructure/store"
	"scout-agent/internal/infrastructure/userinteraction"
	"scout-agent/internal/usecase/agents/extraction"
	"scout-agent/internal/usecase/agents/navigation"
	"scout-agent/internal/usecase/orchestrator"
	"scout-agent/internal/usecase/planner"
	"scout-agent/internal/usecase/steploop"
)

type Container struct {
	Logger    *logger.LoggerAdapter
	Store     *store.Store
	Blobs     *store.FileBlobStore
	LLM       output.LLMPort
	Sessions  *service.SessionRegistry
	Delegates output.DelegateRegistry
	Runner    input.RunExecutor
}

// Config is the resolved run file plus the secrets and overrides the CLI collected.
type Config struct {
	Run    *config.Config
	APIKey string

	Verbose  bool
	Console  io.Writer
	Progress output.ProgressPort
	Tracer   trace.Tracer

	// LLM and Executors replace the configured backends when set.
	LLM       output.LLMPort
	Executors output.ExecutorFactory
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	run := cfg.Run
	if run == nil {
		run = config.Default()
	}

	fileLevel := zapcore.DebugLevel
	if run.Log.Level != "" {
		lvl, err := zapcore.ParseLevel(run.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", run.Log.Level, err)
		}
		fileLevel = lvl
	}
	consoleLevel := zapcore.WarnLevel
	if cfg.Verbose {
		consoleLevel = zapcore.DebugLevel
	}
	log, err := logger.NewLoggerAdapter(logger.Options{
		Dir:          run.Log.GetDir(),
		Name:         "scout",
		Console:      cfg.Console,
		ConsoleLevel: consoleLevel,
		FileLevel:    fileLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.Open(run.Store.GetDatabase())
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	blobs, err := store.NewFileBlobStore(run.Store.GetBlobs())
	if err != nil {
		st.Close()
		log.Close()
		return nil, err
	}

	llm := cfg.LLM
	if llm == nil {
		llm, err = newLLM(run.LLM, cfg.APIKey, log)
		if err != nil {
			st.Close()
			log.Close()
			return nil, err
		}
	}

	executors := cfg.Executors
	if executors == nil {
		executors = rod.NewFactory(browserConfig(run.Browser), log.WithField("component", "browser"))
	}

	progress := cfg.Progress
	if progress == nil {
		progress = userinteraction.NopProgress{}
	}

	loopOpts := []steploop.Option{steploop.WithBlobStore(blobs), steploop.WithProgress(progress)}
	orchOpts := []orchestrator.Option{orchestrator.WithProgress(progress)}
	if cfg.Tracer != nil {
		loopOpts = append(loopOpts, steploop.WithTracer(cfg.Tracer))
		orchOpts = append(orchOpts, orchestrator.WithTracer(cfg.Tracer))
	}

	rsn := reasoner.New(llm, log, reasoner.Config{
		Vision:      run.LLM.Vision,
		Temperature: run.LLM.GetTemperature(),
	})
	navLoop := steploop.New(rsn, st, log, loopConfig(run.Limits, run.Limits.GetNavigateMaxTurns()), loopOpts...)
	extLoop := steploop.New(rsn, st, log, loopConfig(run.Limits, run.Limits.GetExtractMaxTurns()), loopOpts...)

	sessions := service.NewSessionRegistry(executors)
	delegates := service.NewDelegateRegistry(
		navigation.New(navLoop, sessions, log),
		extraction.New(extLoop, sessions, st, st, log),
	)
	plan := planner.New(llm, delegates, log)

	runner := orchestrator.New(delegates, plan, plan, st, st, sessions, log, orchestrator.Config{
		MaxInvocations:  run.Limits.MaxInvocations,
		MaxReplacements: run.Limits.MaxReplacements,
		RunTimeout:      run.Limits.GetRunTimeout(),
	}, orchOpts...)

	log.Info("Container ready",
		"backend", run.LLM.GetBackend(),
		"database", run.Store.GetDatabase(),
		"headless", run.Browser.IsHeadless(),
	)

	return &Container{
		Logger:    log,
		Store:     st,
		Blobs:     blobs,
		LLM:       llm,
		Sessions:  sessions,
		Delegates: delegates,
		Runner:    runner,
	}, nil
}

func (c *Container) Close() error {
	var errs []error
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	if c.Logger != nil {
		errs = append(errs, c.Logger.Close())
	}
	return errors.Join(errs...)
}

func newLLM(cfg config.LLMConfig, apiKey string, log output.LoggerPort) (output.LLMPort, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for the %s backend", cfg.GetBackend())
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured: set llm.model or %s", env.KeyOpenRouterModel)
	}
	switch cfg.GetBackend() {
	case config.BackendLangChain:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openrouter.DefaultConfig("", "").BaseURL
		}
		return langchain.NewOpenAICompatible(apiKey, cfg.Model, baseURL, log)
	default:
		llmCfg := openrouter.DefaultConfig(apiKey, cfg.Model)
		if cfg.BaseURL != "" {
			llmCfg.BaseURL = cfg.BaseURL
		}
		llmCfg.Timeout = cfg.GetTimeout()
		llmCfg.Logger = log
		return openrouter.NewOpenRouterAdapter(llmCfg), nil
	}
}

func browserConfig(b config.BrowserConfig) rod.Config {
	cfg := rod.DefaultConfig()
	cfg.Headless = b.IsHeadless()
	cfg.Bin = b.Bin
	cfg.Width, cfg.Height = b.Viewport()
	cfg.Screenshots = b.TakeScreenshots()
	cfg.SearchURL = b.GetSearchURL()
	// Chromium refuses to start sandboxed as root inside containers.
	cfg.NoSandbox = true
	return cfg
}

func loopConfig(l config.LimitsConfig, maxTurns int) steploop.Config {
	cfg := steploop.DefaultConfig()
	cfg.MaxTurns = maxTurns
	if l.StallThreshold > 0 {
		cfg.StallThreshold = l.StallThreshold
	}
	if l.MaxStalls > 0 {
		cfg.MaxStalls = l.MaxStalls
	}
	cfg.MaxRetries = l.GetMaxRetries()
	cfg.RetryBackoff = l.GetRetryBackoff()
	cfg.ActionTimeout = l.GetActionTimeout()
	return cfg
}

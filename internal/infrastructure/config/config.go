// Package config loads scout run files. A run file names the goals to scrape, the
// output schema and the limits, browser, store and model settings for the runs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"scout-agent/internal/domain/entity"
)

type Config struct {
	Goals   []string          `yaml:"goals"`
	Schema  map[string]string `yaml:"schema"`
	Limits  LimitsConfig      `yaml:"limits,omitempty"`
	Browser BrowserConfig     `yaml:"browser,omitempty"`
	Store   StoreConfig       `yaml:"store,omitempty"`
	LLM     LLMConfig         `yaml:"llm,omitempty"`
	Log     LogConfig         `yaml:"log,omitempty"`
}

// LimitsConfig bounds every run. Durations are Go duration strings ("30s", "5m").
type LimitsConfig struct {
	NavigateMaxTurns int    `yaml:"navigate_max_turns,omitempty"`
	ExtractMaxTurns  int    `yaml:"extract_max_turns,omitempty"`
	StallThreshold   int    `yaml:"stall_threshold,omitempty"`
	MaxStalls        int    `yaml:"max_stalls,omitempty"`
	MaxRetries       *int   `yaml:"max_retries,omitempty"`
	RetryBackoff     string `yaml:"retry_backoff,omitempty"`
	ActionTimeout    string `yaml:"action_timeout,omitempty"`
	RunTimeout       string `yaml:"run_timeout,omitempty"`
	MaxInvocations   int    `yaml:"max_invocations,omitempty"`
	MaxReplacements  int    `yaml:"max_replacements,omitempty"`
}

type BrowserConfig struct {
	Headless    *bool  `yaml:"headless,omitempty"`
	Bin         string `yaml:"bin,omitempty"`
	Width       int    `yaml:"width,omitempty"`
	Height      int    `yaml:"height,omitempty"`
	Screenshots *bool  `yaml:"screenshots,omitempty"`
	// SearchURL is a format string taking the escaped query.
	SearchURL string `yaml:"search_url,omitempty"`
}

type StoreConfig struct {
	Database string `yaml:"database,omitempty"`
	Blobs    string `yaml:"blobs,omitempty"`
}

type LLMConfig struct {
	Backend     string   `yaml:"backend,omitempty"` // "openrouter" or "langchain"
	Model       string   `yaml:"model,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Vision      bool     `yaml:"vision,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
}

type LogConfig struct {
	Dir   string `yaml:"dir,omitempty"`
	Level string `yaml:"level,omitempty"`
}

const (
	BackendOpenRouter = "openrouter"
	BackendLangChain  = "langchain"
)

// Load reads and validates the run file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse run file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with no goals or schema. Callers fill those from flags.
func Default() *Config {
	return &Config{}
}

// Validate checks the parts that would otherwise fail late. Goals are not required
// here since the CLI may supply them.
func (c *Config) Validate() error {
	for i, g := range c.Goals {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("goals[%d] is empty", i)
		}
	}
	if len(c.Schema) > 0 {
		if err := c.OutputSchema().Validate(); err != nil {
			return err
		}
	}

	durations := map[string]string{
		"limits.retry_backoff":  c.Limits.RetryBackoff,
		"limits.action_timeout": c.Limits.ActionTimeout,
		"limits.run_timeout":    c.Limits.RunTimeout,
		"llm.timeout":           c.LLM.Timeout,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.Limits.MaxRetries != nil && *c.Limits.MaxRetries < 0 {
		return fmt.Errorf("limits.max_retries must not be negative")
	}
	if c.Limits.StallThreshold > 0 && c.Limits.MaxStalls > 0 && c.Limits.StallThreshold > c.Limits.MaxStalls {
		return fmt.Errorf("limits.stall_threshold (%d) exceeds limits.max_stalls (%d)", c.Limits.StallThreshold, c.Limits.MaxStalls)
	}

	switch c.LLM.Backend {
	case "", BackendOpenRouter, BackendLangChain:
	default:
		return fmt.Errorf("llm.backend %q is not one of %s, %s", c.LLM.Backend, BackendOpenRouter, BackendLangChain)
	}
	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		return fmt.Errorf("browser viewport must not be negative")
	}
	if c.Browser.SearchURL != "" && !strings.Contains(c.Browser.SearchURL, "%s") {
		return fmt.Errorf("browser.search_url must contain %%s for the query")
	}
	return nil
}

func (c *Config) OutputSchema() entity.Schema {
	if c.Schema == nil {
		return nil
	}
	s := make(entity.Schema, len(c.Schema))
	for name, typ := range c.Schema {
		s[name] = entity.FieldType(strings.ToLower(strings.TrimSpace(typ)))
	}
	return s
}

func duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func (l LimitsConfig) GetRetryBackoff() time.Duration {
	return duration(l.RetryBackoff, 500*time.Millisecond)
}

func (l LimitsConfig) GetActionTimeout() time.Duration {
	return duration(l.ActionTimeout, 30*time.Second)
}

// GetRunTimeout returns zero when runs have no deadline.
func (l LimitsConfig) GetRunTimeout() time.Duration {
	return duration(l.RunTimeout, 0)
}

func (l LimitsConfig) GetMaxRetries() int {
	if l.MaxRetries == nil {
		return 2
	}
	return *l.MaxRetries
}

func (l LimitsConfig) GetNavigateMaxTurns() int {
	if l.NavigateMaxTurns <= 0 {
		return 30
	}
	return l.NavigateMaxTurns
}

func (l LimitsConfig) GetExtractMaxTurns() int {
	if l.ExtractMaxTurns <= 0 {
		return 20
	}
	return l.ExtractMaxTurns
}

func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

func (b BrowserConfig) TakeScreenshots() bool {
	return b.Screenshots == nil || *b.Screenshots
}

func (b BrowserConfig) Viewport() (int, int) {
	w, h := b.Width, b.Height
	if w == 0 {
		w = 1280
	}
	if h == 0 {
		h = 1100
	}
	return w, h
}

func (b BrowserConfig) GetSearchURL() string {
	if b.SearchURL == "" {
		return "https://duckduckgo.com/html/?q=%s"
	}
	return b.SearchURL
}

func (s StoreConfig) GetDatabase() string {
	if s.Database == "" {
		return "scout.db"
	}
	return s.Database
}

func (s StoreConfig) GetBlobs() string {
	if s.Blobs == "" {
		return "artifacts"
	}
	return s.Blobs
}

func (l LLMConfig) GetBackend() string {
	if l.Backend == "" {
		return BackendOpenRouter
	}
	return l.Backend
}

func (l LLMConfig) GetTemperature() float32 {
	if l.Temperature == nil {
		return 0
	}
	return float32(*l.Temperature)
}

func (l LLMConfig) GetTimeout() time.Duration {
	return duration(l.Timeout, 2*time.Minute)
}

func (l LogConfig) GetDir() string {
	if l.Dir == "" {
		return "log"
	}
	return l.Dir
}

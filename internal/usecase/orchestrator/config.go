package orchestrator

import "time"

type Config struct {
	// MaxInvocations caps delegate calls per run.
	MaxInvocations int
	// MaxReplacements is how many failed replacements a lineage may accumulate before it is abandoned.
	MaxReplacements int
	// RunTimeout bounds the whole run. Zero means no deadline.
	RunTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxInvocations:  24,
		MaxReplacements: 2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxInvocations <= 0 {
		c.MaxInvocations = d.MaxInvocations
	}
	if c.MaxReplacements <= 0 {
		c.MaxReplacements = d.MaxReplacements
	}
	if c.RunTimeout < 0 {
		c.RunTimeout = 0
	}
	return c
}

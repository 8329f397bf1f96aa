package steploop

import "time"

type Config struct {
	MaxTurns int

	// StallThreshold is the streak length at which the loop forces a change of approach.
	StallThreshold int
	// MaxStalls is the streak length at which the loop gives up.
	MaxStalls int

	// MaxRetries bounds extra attempts of a failed reasoner or executor call within one turn.
	MaxRetries    int
	RetryBackoff  time.Duration
	ActionTimeout time.Duration

	// MaxNoteLen truncates executor notes before they reach the reasoner.
	MaxNoteLen int
}

func DefaultConfig() Config {
	return Config{
		MaxTurns:       30,
		StallThreshold: 2,
		MaxStalls:      3,
		MaxRetries:     2,
		RetryBackoff:   500 * time.Millisecond,
		ActionTimeout:  30 * time.Second,
		MaxNoteLen:     20000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTurns <= 0 {
		c.MaxTurns = d.MaxTurns
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = d.StallThreshold
	}
	if c.MaxStalls <= 0 {
		c.MaxStalls = d.MaxStalls
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = d.ActionTimeout
	}
	if c.MaxNoteLen <= 0 {
		c.MaxNoteLen = d.MaxNoteLen
	}
	return c
}

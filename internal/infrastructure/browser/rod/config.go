package rod

import "time"

type Config struct {
	Headless  bool
	Bin       string
	NoSandbox bool
	Width     int
	Height    int
	// Screenshots attaches a compressed JPEG to every snapshot.
	Screenshots bool
	// SearchURL is a format string taking the escaped query.
	SearchURL string
	// SettleTimeout bounds the wait for network idle after an action.
	SettleTimeout time.Duration
	MaxElements   int
	MaxContent    int
}

const (
	defaultSettleTimeout = 2 * time.Second
	defaultMaxElements   = 300
	defaultMaxContent    = 30000
	maxWaitSeconds       = 10
)

func DefaultConfig() Config {
	return Config{
		Headless:      true,
		Width:         1280,
		Height:        1100,
		Screenshots:   true,
		SearchURL:     "https://duckduckgo.com/html/?q=%s",
		SettleTimeout: defaultSettleTimeout,
		MaxElements:   defaultMaxElements,
		MaxContent:    defaultMaxContent,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.SearchURL == "" {
		c.SearchURL = d.SearchURL
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = d.SettleTimeout
	}
	if c.MaxElements <= 0 {
		c.MaxElements = d.MaxElements
	}
	if c.MaxContent <= 0 {
		c.MaxContent = d.MaxContent
	}
	return c
}

// Package rod drives a Chromium browser through go-rod as the action executor of a run.
package rod

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"scout-agent/internal/application/port/output"
)

var _ output.ExecutorFactory = (*Factory)(nil)

// Factory launches one browser per session so parallel runs never share tabs.
type Factory struct {
	cfg    Config
	logger output.LoggerPort
}

func NewFactory(cfg Config, logger output.LoggerPort) *Factory {
	return &Factory{cfg: cfg.withDefaults(), logger: logger}
}

func (f *Factory) Open(ctx context.Context) (output.ExecutorSession, error) {
	l := launcher.New().
		Context(context.WithoutCancel(ctx)).
		Headless(f.cfg.Headless).
		NoSandbox(f.cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("window-size", fmt.Sprintf("%d,%d", f.cfg.Width, f.cfg.Height))
	if f.cfg.Bin != "" {
		l = l.Bin(f.cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open first tab: %w", err)
	}

	s := newSession(browser, l, f.cfg, f.logger)
	if err := s.adopt(page); err != nil {
		_ = s.Close()
		return nil, err
	}
	f.logger.Info("Browser session opened", "headless", f.cfg.Headless)
	return s, nil
}

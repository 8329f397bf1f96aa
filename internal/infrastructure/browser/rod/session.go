package rod

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

var _ output.ExecutorSession = (*Session)(nil)

type tab struct {
	id   int
	page *rod.Page
}

// Session is one browser with its tabs. Element indexes refer to the last snapshot.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
	logger   output.LoggerPort

	mu      sync.Mutex
	tabs    []tab
	active  int
	nextTab int
	closed  bool
}

func newSession(browser *rod.Browser, l *launcher.Launcher, cfg Config, logger output.LoggerPort) *Session {
	return &Session{
		browser:  browser,
		launcher: l,
		cfg:      cfg,
		logger:   logger,
		nextTab:  1,
	}
}

func (s *Session) Observe(ctx context.Context) (*entity.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: session closed", entity.ErrExecutorUnavailable)
	}
	return s.snapshot(ctx, "", "")
}

func (s *Session) Execute(ctx context.Context, action entity.Action) (*entity.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: session closed", entity.ErrExecutorUnavailable)
	}

	note, content, err := s.perform(ctx, action)
	if err != nil {
		if !s.alive() {
			return nil, fmt.Errorf("%w: %v", entity.ErrExecutorUnavailable, err)
		}
		note = "Error: " + err.Error()
		content = ""
	}
	return s.snapshot(ctx, note, content)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return err
}

// perform runs one action and returns the note for the reasoner. A returned error
// is reported as a recoverable note unless the browser itself is gone.
func (s *Session) perform(ctx context.Context, a entity.Action) (string, string, error) {
	page := s.page().Context(ctx)

	switch a.Kind {
	case entity.ActionNavigate:
		if err := checkURL(a.URL); err != nil {
			return "", "", err
		}
		if err := s.goTo(page, a.URL); err != nil {
			return "", "", err
		}
		return "Navigated to " + a.URL, "", nil

	case entity.ActionSearch:
		target := fmt.Sprintf(s.cfg.SearchURL, url.QueryEscape(a.Query))
		if err := s.goTo(page, target); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Searched for %q", a.Query), "", nil

	case entity.ActionGoBack:
		if err := page.NavigateBack(); err != nil {
			return "", "", fmt.Errorf("go back failed: %w", err)
		}
		s.settle(page)
		return "Navigated back", "", nil

	case entity.ActionClick:
		el, err := indexed(page, a.Index)
		if err != nil {
			return "", "", err
		}
		before := len(s.tabs)
		_ = el.ScrollIntoView()
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return "", "", fmt.Errorf("click on element %d failed: %w", a.Index, err)
		}
		s.settle(page)
		s.adoptPopups()
		if len(s.tabs) > before {
			return fmt.Sprintf("Clicked element %d, it opened tab %d", a.Index, s.tabs[s.active].id), "", nil
		}
		return fmt.Sprintf("Clicked element %d", a.Index), "", nil

	case entity.ActionInputText:
		el, err := indexed(page, a.Index)
		if err != nil {
			return "", "", err
		}
		_ = el.ScrollIntoView()
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
		if err := el.Input(a.Text); err != nil {
			return "", "", fmt.Errorf("input into element %d failed: %w", a.Index, err)
		}
		return fmt.Sprintf("Typed %q into element %d", a.Text, a.Index), "", nil

	case entity.ActionPressEnter:
		if err := page.Keyboard.Type(input.Enter); err != nil {
			return "", "", fmt.Errorf("failed to press Enter: %w", err)
		}
		s.settle(page)
		return "Pressed Enter", "", nil

	case entity.ActionScroll:
		if err := scroll(page, a.Direction, a.Amount); err != nil {
			return "", "", err
		}
		return "Scrolled " + strings.ToLower(a.Direction), "", nil

	case entity.ActionOpenTab:
		if err := checkURL(a.URL); err != nil {
			return "", "", err
		}
		p, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return "", "", fmt.Errorf("failed to open tab: %w", err)
		}
		if err := s.adopt(p); err != nil {
			return "", "", err
		}
		if err := s.goTo(p.Context(ctx), a.URL); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Opened tab %d with %s", s.tabs[s.active].id, a.URL), "", nil

	case entity.ActionSwitchTab:
		for i, t := range s.tabs {
			if t.id == a.TabID {
				s.active = i
				if _, err := t.page.Activate(); err != nil {
					return "", "", fmt.Errorf("failed to switch to tab %d: %w", a.TabID, err)
				}
				return fmt.Sprintf("Switched to tab %d", a.TabID), "", nil
			}
		}
		return "", "", fmt.Errorf("tab %d does not exist", a.TabID)

	case entity.ActionWait:
		secs := a.Seconds
		if secs <= 0 {
			secs = 1
		}
		if secs > maxWaitSeconds {
			secs = maxWaitSeconds
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(secs) * time.Second):
		}
		return fmt.Sprintf("Waited %d seconds", secs), "", nil

	case entity.ActionExtract:
		html, err := page.HTML()
		if err != nil {
			return "", "", fmt.Errorf("failed to read page: %w", err)
		}
		info, _ := page.Info()
		pageURL := ""
		if info != nil {
			pageURL = info.URL
		}
		text := Readable(html, pageURL, s.cfg.MaxContent)
		if text == "" {
			return "Page has no readable content", "", nil
		}
		return fmt.Sprintf("Extracted page content for: %s", a.Goal), text, nil

	default:
		return "", "", fmt.Errorf("action '%s' is not supported by the browser", a.Kind)
	}
}

func (s *Session) page() *rod.Page {
	return s.tabs[s.active].page
}

// adopt tracks p as a new tab and makes it active.
func (s *Session) adopt(p *rod.Page) error {
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.Width,
		Height:            s.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	s.tabs = append(s.tabs, tab{id: s.nextTab, page: p})
	s.nextTab++
	s.active = len(s.tabs) - 1
	return nil
}

// adoptPopups picks up pages opened by the site itself, such as target=_blank links.
func (s *Session) adoptPopups() {
	pages, err := s.browser.Pages()
	if err != nil {
		return
	}
	known := make(map[proto.TargetTargetID]bool, len(s.tabs))
	for _, t := range s.tabs {
		known[t.page.TargetID] = true
	}
	for _, p := range pages {
		if known[p.TargetID] {
			continue
		}
		if err := s.adopt(p); err != nil {
			s.logger.Warn("Failed to adopt popup tab", "error", err)
			continue
		}
		s.settle(p)
	}
}

func (s *Session) goTo(page *rod.Page, target string) error {
	if err := page.Navigate(target); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.Debug("Page load wait failed", "url", target, "error", err)
	}
	s.settle(page)
	return nil
}

func (s *Session) settle(page *rod.Page) {
	_ = page.WaitIdle(s.cfg.SettleTimeout)
}

func (s *Session) alive() bool {
	_, err := s.browser.Version()
	return err == nil
}

func (s *Session) snapshot(ctx context.Context, note, content string) (*entity.Snapshot, error) {
	page := s.page().Context(ctx)

	info, err := page.Info()
	if err != nil {
		if !s.alive() {
			return nil, fmt.Errorf("%w: %v", entity.ErrExecutorUnavailable, err)
		}
		return nil, fmt.Errorf("failed to read page info: %w", err)
	}

	snap := &entity.Snapshot{
		URL:     info.URL,
		Title:   info.Title,
		Content: content,
		Note:    note,
	}
	for i, t := range s.tabs {
		tabInfo, err := t.page.Info()
		if err != nil {
			continue
		}
		snap.Tabs = append(snap.Tabs, entity.Tab{ID: t.id, URL: tabInfo.URL, Title: tabInfo.Title, Active: i == s.active})
	}

	elements, err := indexElements(page, s.cfg.MaxElements)
	if err != nil {
		s.logger.Debug("Element indexing failed", "url", info.URL, "error", err)
	}
	snap.Elements = elements

	if s.cfg.Screenshots {
		shot, err := screenshot(page)
		if err != nil {
			s.logger.Debug("Screenshot failed", "url", info.URL, "error", err)
		} else {
			snap.Screenshot = shot
		}
	}
	return snap, nil
}

func scroll(page *rod.Page, direction string, amount int) error {
	var js string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down":
		js = `(n) => window.scrollBy(0, n > 0 ? n : window.innerHeight)`
	case "up":
		js = `(n) => window.scrollBy(0, -(n > 0 ? n : window.innerHeight))`
	case "top":
		js = `() => window.scrollTo(0, 0)`
	case "bottom":
		js = `() => window.scrollTo(0, document.body.scrollHeight)`
	default:
		return fmt.Errorf("unknown scroll direction: %s", direction)
	}
	if _, err := page.Eval(js, amount); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	_ = page.WaitIdle(500 * time.Millisecond)
	return nil
}

var errNotAbsolute = errors.New("url must be an absolute http or https url")

func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", errNotAbsolute, raw)
	}
	return nil
}

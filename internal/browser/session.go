// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer-cli/internal/config"
)

// tab is one live page within the session.
type tab struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	exec   Executor
}

// Session owns the set of open tabs and the turn counter that stamps
// observations. Exactly one tab is active at a time; all interactions are
// routed to it. The loop driving a Session is strictly sequential, so the
// mutex only guards against misuse, not real contention.
type Session struct {
	id     string
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.Mutex
	tabs   []*tab
	active int
	turn   int

	closeOnce sync.Once
}

// NewSession wraps an existing chromedp tab context (the browser's first
// page) into a session.
func NewSession(ctx context.Context, tabCtx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("session").With(zap.String("session_id", sessionID))

	exec := NewCDPExecutor(tabCtx, cfg.Network.NavigationTimeout, cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight, log)

	// Force the first page into existence and turn on the accessibility
	// domain before anything observes it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser tab: %w", err)
	}
	if err := exec.EnableAccessibility(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to enable accessibility domain: %w", err)
	}

	s := &Session{
		id:     sessionID,
		cfg:    cfg,
		logger: log,
		tabs: []*tab{{
			id:     uuid.New().String(),
			ctx:    tabCtx,
			cancel: cancel,
			exec:   exec,
		}},
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Turn returns the turn number of the most recent observation.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// activeExec returns the executor for the currently focused tab.
func (s *Session) activeExec() Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs[s.active].exec
}

// Observe encodes the active page into a fresh turn-stamped observation. The
// previous turn's ID map is superseded entirely: any ref still held from an
// earlier observation is stale from this point on.
func (s *Session) Observe(ctx context.Context) (*Observation, error) {
	exec := s.activeExec()

	nodes, err := exec.FullAXTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to observe page: %w", err)
	}

	tree, refs, truncated := EncodeAXTree(nodes, EncodeOptions{
		MaxLines:   s.cfg.Agent.MaxTreeLines,
		SkipRoles:  s.cfg.Agent.SkipRoles,
		NoiseRoles: s.cfg.Agent.NoiseRoles,
	})

	url, err := exec.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page location: %w", err)
	}
	title, _ := exec.Title(ctx)

	s.mu.Lock()
	s.turn++
	obs := &Observation{
		Turn:      s.turn,
		URL:       url,
		Title:     title,
		Tree:      tree,
		Refs:      refs,
		Truncated: truncated,
	}
	s.mu.Unlock()

	s.logger.Debug("Page observed",
		zap.Int("turn", obs.Turn),
		zap.String("url", url),
		zap.Int("elements", len(refs)),
		zap.Int("truncated", truncated))
	return obs, nil
}

// CurrentURL returns the active tab's URL.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return s.activeExec().Location(ctx)
}

// Title returns the active tab's document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	return s.activeExec().Title(ctx)
}

// HTML returns the active tab's serialized DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.activeExec().OuterHTML(ctx)
}

// Screenshot captures the full active page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.activeExec().CaptureScreenshot(ctx)
}

// Evaluate runs a JavaScript expression in the active tab.
func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	return s.activeExec().Evaluate(ctx, expr, out)
}

// NewTab opens a fresh page in the same browser and focuses it.
func (s *Session) NewTab(ctx context.Context) error {
	s.mu.Lock()
	parent := s.tabs[0].ctx
	s.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(parent)
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return fmt.Errorf("failed to open new tab: %w", err)
	}

	exec := NewCDPExecutor(tabCtx, s.cfg.Network.NavigationTimeout, s.cfg.Browser.ViewportWidth, s.cfg.Browser.ViewportHeight, s.logger)
	if err := exec.EnableAccessibility(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to enable accessibility on new tab: %w", err)
	}

	s.mu.Lock()
	s.tabs = append(s.tabs, &tab{
		id:     uuid.New().String(),
		ctx:    tabCtx,
		cancel: cancel,
		exec:   exec,
	})
	s.active = len(s.tabs) - 1
	index := s.active
	s.mu.Unlock()

	s.logger.Info("Opened new tab", zap.Int("tab_index", index))
	return nil
}

// FocusTab switches the active tab. Out-of-range indices are a no-op
// failure, never a panic.
func (s *Session) FocusTab(ctx context.Context, index int) ActionResult {
	s.mu.Lock()
	if index < 0 || index >= len(s.tabs) {
		count := len(s.tabs)
		s.mu.Unlock()
		return Failure(FailTabOutOfRange, fmt.Errorf("tab index %d out of range (%d tabs open)", index, count))
	}
	s.active = index
	exec := s.tabs[index].exec
	s.mu.Unlock()

	// Best effort; input still routes to the tab regardless of visual focus.
	_ = exec.Evaluate(ctx, "window.focus()", nil)
	s.logger.Info("Focused tab", zap.Int("tab_index", index))
	return Success()
}

// CloseTab closes the active tab and focuses the previous one. Closing the
// last remaining tab is a no-op failure.
func (s *Session) CloseTab(ctx context.Context) ActionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tabs) <= 1 {
		return Failure(FailTabOutOfRange, fmt.Errorf("refusing to close the last tab"))
	}

	t := s.tabs[s.active]
	t.cancel()
	s.tabs = append(s.tabs[:s.active], s.tabs[s.active+1:]...)
	if s.active >= len(s.tabs) {
		s.active = len(s.tabs) - 1
	}

	s.logger.Info("Closed tab", zap.Int("remaining", len(s.tabs)))
	return Success()
}

// TabCount returns how many tabs are open.
func (s *Session) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Close shuts down every tab in the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.logger.Info("Closing session")
		for _, t := range s.tabs {
			t.cancel()
		}
		s.tabs = nil
	})
}

// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/wayfarer-cli/internal/config"
)

// Manager owns the Chrome process via a chromedp exec allocator and hands
// out sessions bound to it.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	sessions []*Session
}

// NewManager configures the Chrome allocator. The browser process itself is
// launched lazily when the first tab context is used.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.WindowSize(cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight),
		chromedp.Flag("headless", cfg.Browser.Headless),
	)

	if cfg.Browser.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.Browser.UserDataDir))
	}
	for _, arg := range cfg.Browser.Args {
		name, value := splitChromeArg(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	m := &Manager{
		cfg:         cfg,
		logger:      logger.Named("browser_manager"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
	m.logger.Info("Browser manager created",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("user_data_dir", cfg.Browser.UserDataDir))
	return m, nil
}

// splitChromeArg parses a raw "--name=value" or "--name" flag string into
// the pieces chromedp.Flag expects.
func splitChromeArg(arg string) (string, any) {
	arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
	if arg == "" {
		return "", nil
	}
	if name, value, found := strings.Cut(arg, "="); found {
		return name, value
	}
	return arg, true
}

// NewSession opens a browser tab context and wraps it in a Session. The
// first call launches the Chrome process; launch failures surface here.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(m.allocCtx)

	s, err := NewSession(ctx, tabCtx, cancel, m.cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser session: %w", err)
	}

	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()

	m.logger.Info("Browser session created", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown closes every open session concurrently, then tears down the
// browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = nil
	m.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			s.Close()
			return nil
		})
	}
	err := g.Wait()

	m.allocCancel()
	m.logger.Info("Browser manager shut down", zap.Int("sessions_closed", len(sessions)))
	return err
}

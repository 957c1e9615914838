// File: internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// Executor is the low-level browser driver surface for a single tab. The
// production implementation speaks CDP; tests substitute a mock so that
// resolution and interaction logic can run without a browser.
type Executor interface {
	Navigate(ctx context.Context, url string) error
	NavigateBack(ctx context.Context) error
	NavigateForward(ctx context.Context) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	OuterHTML(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context) ([]byte, error)

	FullAXTree(ctx context.Context) ([]*accessibility.Node, error)
	QueryAXTree(ctx context.Context, role string) ([]*accessibility.Node, error)
	NodeCenter(ctx context.Context, id cdp.BackendNodeID) (float64, float64, error)

	ClickAt(ctx context.Context, x, y float64) error
	MoveMouseTo(ctx context.Context, x, y float64) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	KeyCombo(ctx context.Context, modifiers input.Modifier, key string) error
	ScrollBy(ctx context.Context, deltaX, deltaY float64) error

	Evaluate(ctx context.Context, expr string, out any) error
	SetCookie(ctx context.Context, name, value, urlStr string) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	Sleep(ctx context.Context, d time.Duration) error
}

// CDPExecutor implements Executor against a chromedp tab context.
type CDPExecutor struct {
	tabCtx     context.Context
	logger     *zap.Logger
	navTimeout time.Duration
	viewportW  int
	viewportH  int
}

var _ Executor = (*CDPExecutor)(nil)

// NewCDPExecutor binds an executor to a chromedp tab context.
func NewCDPExecutor(tabCtx context.Context, navTimeout time.Duration, viewportW, viewportH int, logger *zap.Logger) *CDPExecutor {
	return &CDPExecutor{
		tabCtx:     tabCtx,
		logger:     logger.Named("cdp"),
		navTimeout: navTimeout,
		viewportW:  viewportW,
		viewportH:  viewportH,
	}
}

// run executes chromedp actions against the tab, honoring both the tab
// lifecycle context and the operation context.
func (e *CDPExecutor) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(e.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// EnableAccessibility turns on the accessibility domain for the tab. Must be
// called once before FullAXTree or QueryAXTree.
func (e *CDPExecutor) EnableAccessibility(ctx context.Context) error {
	return e.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return accessibility.Enable().Do(c)
	}))
}

func (e *CDPExecutor) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := context.WithTimeout(ctx, e.navTimeout)
	defer cancel()

	err := e.run(opCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("navigation to %s timed out after %v: %w", url, e.navTimeout, opCtx.Err())
	}
	return err
}

func (e *CDPExecutor) NavigateBack(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, e.navTimeout)
	defer cancel()
	return e.run(opCtx,
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (e *CDPExecutor) NavigateForward(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, e.navTimeout)
	defer cancel()
	return e.run(opCtx,
		chromedp.NavigateForward(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (e *CDPExecutor) Location(ctx context.Context) (string, error) {
	var url string
	err := e.run(ctx, chromedp.Location(&url))
	return url, err
}

func (e *CDPExecutor) Title(ctx context.Context) (string, error) {
	var title string
	err := e.run(ctx, chromedp.Title(&title))
	return title, err
}

func (e *CDPExecutor) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := e.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (e *CDPExecutor) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := e.run(ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (e *CDPExecutor) FullAXTree(ctx context.Context) ([]*accessibility.Node, error) {
	var nodes []*accessibility.Node
	err := e.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		nodes, err = accessibility.GetFullAXTree().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accessibility tree: %w", err)
	}
	return nodes, nil
}

func (e *CDPExecutor) QueryAXTree(ctx context.Context, role string) ([]*accessibility.Node, error) {
	var nodes []*accessibility.Node
	err := e.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		root, err := dom.GetDocument().Do(c)
		if err != nil {
			return fmt.Errorf("failed to get document root: %w", err)
		}
		nodes, err = accessibility.QueryAXTree().
			WithNodeID(root.NodeID).
			WithRole(role).
			Do(c)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (e *CDPExecutor) NodeCenter(ctx context.Context, id cdp.BackendNodeID) (float64, float64, error) {
	var x, y float64
	err := e.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		box, err := dom.GetBoxModel().WithBackendNodeID(id).Do(c)
		if err != nil {
			return fmt.Errorf("failed to get box model for node %d: %w", id, err)
		}
		if box == nil || len(box.Content) < 8 || box.Width <= 0 || box.Height <= 0 {
			return fmt.Errorf("node %d has no visible box", id)
		}
		// Content quad is four (x, y) corner pairs.
		x = (box.Content[0] + box.Content[2] + box.Content[4] + box.Content[6]) / 4
		y = (box.Content[1] + box.Content[3] + box.Content[5] + box.Content[7]) / 4
		return nil
	}))
	return x, y, err
}

func (e *CDPExecutor) ClickAt(ctx context.Context, x, y float64) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.run(opCtx, chromedp.MouseClickXY(x, y))
}

func (e *CDPExecutor) MoveMouseTo(ctx context.Context, x, y float64) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.run(opCtx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

func (e *CDPExecutor) TypeText(ctx context.Context, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return e.run(opCtx, chromedp.KeyEvent(text))
}

// specialKeys maps user-facing key names to the raw key strings chromedp's
// keyboard layer understands.
var specialKeys = map[string]string{
	"enter":     kb.Enter,
	"return":    kb.Enter,
	"tab":       kb.Tab,
	"escape":    kb.Escape,
	"esc":       kb.Escape,
	"backspace": kb.Backspace,
	"delete":    kb.Delete,
	"arrowup":   kb.ArrowUp,
	"arrowdown": kb.ArrowDown,
	"up":        kb.ArrowUp,
	"down":      kb.ArrowDown,
	"left":      kb.ArrowLeft,
	"right":     kb.ArrowRight,
	"pageup":    kb.PageUp,
	"pagedown":  kb.PageDown,
	"home":      kb.Home,
	"end":       kb.End,
	"space":     " ",
}

func normalizeKeyName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, " ", "")))
}

// resolveKey translates a key name to a dispatchable key string. Single
// characters pass through unchanged.
func resolveKey(name string) (string, bool) {
	if k, ok := specialKeys[normalizeKeyName(name)]; ok {
		return k, true
	}
	if len([]rune(name)) == 1 {
		return name, true
	}
	return "", false
}

func (e *CDPExecutor) PressKey(ctx context.Context, key string) error {
	k, ok := resolveKey(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.run(opCtx, chromedp.KeyEvent(k))
}

// KeyCombo dispatches a modifier+key chord as raw keyDown/keyUp events.
func (e *CDPExecutor) KeyCombo(ctx context.Context, modifiers input.Modifier, key string) error {
	keyDown := input.DispatchKeyEvent(input.KeyDown).
		WithModifiers(modifiers).
		WithKey(key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(modifiers).
		WithKey(key)

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := e.run(opCtx, keyDown, keyUp); err != nil {
		return fmt.Errorf("failed to dispatch key chord %q: %w", key, err)
	}
	return nil
}

func (e *CDPExecutor) ScrollBy(ctx context.Context, deltaX, deltaY float64) error {
	cx := float64(e.viewportW) / 2
	cy := float64(e.viewportH) / 2

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.run(opCtx,
		input.DispatchMouseEvent(input.MouseWheel, cx, cy).
			WithDeltaX(deltaX).
			WithDeltaY(deltaY),
	)
}

func (e *CDPExecutor) Evaluate(ctx context.Context, expr string, out any) error {
	opCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	return e.run(opCtx, chromedp.Evaluate(expr, out, chromedp.EvalAsValue, chromedp.EvalWithCommandLineAPI))
}

func (e *CDPExecutor) SetCookie(ctx context.Context, name, value, urlStr string) error {
	return e.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return network.SetCookie(name, value).WithURL(urlStr).Do(c)
	}))
}

func (e *CDPExecutor) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return e.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return network.SetExtraHTTPHeaders(h).Do(c)
	}))
}

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return e.run(ctx, chromedp.Sleep(d))
}

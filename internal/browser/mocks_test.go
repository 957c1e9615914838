// File: internal/browser/mocks_test.go
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/mock"
)

// MockExecutor is a testify mock of the Executor interface so interaction
// logic can be tested without a browser.
type MockExecutor struct {
	mock.Mock
}

var _ Executor = (*MockExecutor)(nil)

func (m *MockExecutor) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockExecutor) NavigateBack(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockExecutor) NavigateForward(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockExecutor) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockExecutor) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockExecutor) OuterHTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockExecutor) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var b []byte
	if v := args.Get(0); v != nil {
		b = v.([]byte)
	}
	return b, args.Error(1)
}

func (m *MockExecutor) FullAXTree(ctx context.Context) ([]*accessibility.Node, error) {
	args := m.Called(ctx)
	var nodes []*accessibility.Node
	if v := args.Get(0); v != nil {
		nodes = v.([]*accessibility.Node)
	}
	return nodes, args.Error(1)
}

func (m *MockExecutor) QueryAXTree(ctx context.Context, role string) ([]*accessibility.Node, error) {
	args := m.Called(ctx, role)
	var nodes []*accessibility.Node
	if v := args.Get(0); v != nil {
		nodes = v.([]*accessibility.Node)
	}
	return nodes, args.Error(1)
}

func (m *MockExecutor) NodeCenter(ctx context.Context, id cdp.BackendNodeID) (float64, float64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *MockExecutor) ClickAt(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockExecutor) MoveMouseTo(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockExecutor) TypeText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockExecutor) PressKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockExecutor) KeyCombo(ctx context.Context, modifiers input.Modifier, key string) error {
	return m.Called(ctx, modifiers, key).Error(0)
}

func (m *MockExecutor) ScrollBy(ctx context.Context, deltaX, deltaY float64) error {
	return m.Called(ctx, deltaX, deltaY).Error(0)
}

func (m *MockExecutor) Evaluate(ctx context.Context, expr string, out any) error {
	return m.Called(ctx, expr, out).Error(0)
}

func (m *MockExecutor) SetCookie(ctx context.Context, name, value, urlStr string) error {
	return m.Called(ctx, name, value, urlStr).Error(0)
}

func (m *MockExecutor) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	return m.Called(ctx, headers).Error(0)
}

func (m *MockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return m.Called(ctx, d).Error(0)
}

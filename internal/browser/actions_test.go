// File: internal/browser/actions_test.go
package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer-cli/internal/config"
)

// newTestSession wires a session directly to a mock executor, bypassing the
// chromedp bootstrap.
func newTestSession(exec Executor) *Session {
	cfg := config.NewDefaultConfig()
	return &Session{
		id:     "test",
		cfg:    cfg,
		logger: zap.NewNop(),
		tabs:   []*tab{{id: "tab0", exec: exec, cancel: func() {}}},
		turn:   1,
	}
}

func freshObservation(s *Session, refs map[int]NodeRef) *Observation {
	return &Observation{Turn: s.Turn(), Refs: refs}
}

func TestClick_PrimaryGeometryPath(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{
		3: {ID: 3, Role: "button", Name: "Submit", BackendID: 42},
	})

	exec.On("NodeCenter", mock.Anything, cdp.BackendNodeID(42)).Return(100.0, 200.0, nil)
	exec.On("ClickAt", mock.Anything, 100.0, 200.0).Return(nil)

	res := s.Click(context.Background(), obs, 3)
	assert.True(t, res.OK)
	exec.AssertExpectations(t)
}

func TestClick_FallbackRoleNamePath(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{
		3: {ID: 3, Role: "button", Name: "Submit", BackendID: 42},
	})

	// Geometry on the cached node fails; the live query finds a fresh node
	// with a matching name.
	exec.On("NodeCenter", mock.Anything, cdp.BackendNodeID(42)).
		Return(0.0, 0.0, errors.New("node 42 has no visible box")).Once()
	exec.On("QueryAXTree", mock.Anything, "button").Return([]*accessibility.Node{
		axNode("a", "button", "Cancel", 50),
		axNode("b", "button", "Submit order", 51),
	}, nil)
	exec.On("NodeCenter", mock.Anything, cdp.BackendNodeID(51)).Return(300.0, 400.0, nil)
	exec.On("ClickAt", mock.Anything, 300.0, 400.0).Return(nil)

	res := s.Click(context.Background(), obs, 3)
	assert.True(t, res.OK)
	exec.AssertExpectations(t)
}

func TestClick_BothPathsFail(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{
		3: {ID: 3, Role: "button", Name: "Submit", BackendID: 42},
	})

	exec.On("NodeCenter", mock.Anything, cdp.BackendNodeID(42)).
		Return(0.0, 0.0, errors.New("no box"))
	exec.On("QueryAXTree", mock.Anything, "button").Return(nil, errors.New("query failed"))

	res := s.Click(context.Background(), obs, 3)
	require.False(t, res.OK)
	assert.Equal(t, FailFallbackMiss, res.Reason)
}

func TestClick_StaleObservationRefused(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{3: {ID: 3, BackendID: 42}})

	// A newer observation has since been taken.
	s.mu.Lock()
	s.turn++
	s.mu.Unlock()

	res := s.Click(context.Background(), obs, 3)
	require.False(t, res.OK)
	assert.Equal(t, FailStaleObservation, res.Reason)
	assert.ErrorIs(t, res.Err, ErrStaleObservation)
	exec.AssertNotCalled(t, "ClickAt", mock.Anything, mock.Anything, mock.Anything)
}

func TestClick_UnknownID(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{})

	res := s.Click(context.Background(), obs, 99)
	require.False(t, res.OK)
	assert.Equal(t, FailUnknownID, res.Reason)
	assert.ErrorIs(t, res.Err, ErrUnknownID)
}

func TestType_SelectsAllThenTypesAndSubmits(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{
		7: {ID: 7, Role: "textbox", Name: "Search", BackendID: 10},
	})

	exec.On("NodeCenter", mock.Anything, cdp.BackendNodeID(10)).Return(50.0, 60.0, nil)
	exec.On("ClickAt", mock.Anything, 50.0, 60.0).Return(nil)
	exec.On("KeyCombo", mock.Anything, input.ModifierCtrl, "a").Return(nil)
	exec.On("TypeText", mock.Anything, "golang chromedp").Return(nil)
	exec.On("PressKey", mock.Anything, "Enter").Return(nil)

	res := s.Type(context.Background(), obs, 7, "golang chromedp", true)
	assert.True(t, res.OK)
	exec.AssertExpectations(t)
}

func TestType_NoSubmitSkipsEnter(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)
	obs := freshObservation(s, map[int]NodeRef{
		7: {ID: 7, Role: "textbox", Name: "Search", BackendID: 10},
	})

	exec.On("NodeCenter", mock.Anything, cdp.BackendNodeID(10)).Return(50.0, 60.0, nil)
	exec.On("ClickAt", mock.Anything, 50.0, 60.0).Return(nil)
	exec.On("KeyCombo", mock.Anything, input.ModifierCtrl, "a").Return(nil)
	exec.On("TypeText", mock.Anything, "draft text").Return(nil)

	res := s.Type(context.Background(), obs, 7, "draft text", false)
	assert.True(t, res.OK)
	exec.AssertNotCalled(t, "PressKey", mock.Anything, mock.Anything)
}

func TestPress(t *testing.T) {
	t.Run("plain key", func(t *testing.T) {
		exec := &MockExecutor{}
		s := newTestSession(exec)
		exec.On("PressKey", mock.Anything, "Enter").Return(nil)
		assert.True(t, s.Press(context.Background(), "Enter").OK)
	})

	t.Run("modifier chord", func(t *testing.T) {
		exec := &MockExecutor{}
		s := newTestSession(exec)
		exec.On("KeyCombo", mock.Anything, input.ModifierCtrl|input.ModifierShift, "R").Return(nil)
		assert.True(t, s.Press(context.Background(), "ctrl+shift+R").OK)
	})

	t.Run("unknown modifier", func(t *testing.T) {
		exec := &MockExecutor{}
		s := newTestSession(exec)
		res := s.Press(context.Background(), "hyper+x")
		require.False(t, res.OK)
		assert.Equal(t, FailBadArgument, res.Reason)
	})
}

func TestScroll(t *testing.T) {
	t.Run("down", func(t *testing.T) {
		exec := &MockExecutor{}
		s := newTestSession(exec)
		exec.On("ScrollBy", mock.Anything, 0.0, mock.MatchedBy(func(dy float64) bool { return dy > 0 })).Return(nil)
		assert.True(t, s.Scroll(context.Background(), "down").OK)
	})

	t.Run("up", func(t *testing.T) {
		exec := &MockExecutor{}
		s := newTestSession(exec)
		exec.On("ScrollBy", mock.Anything, 0.0, mock.MatchedBy(func(dy float64) bool { return dy < 0 })).Return(nil)
		assert.True(t, s.Scroll(context.Background(), "up").OK)
	})

	t.Run("bad direction", func(t *testing.T) {
		exec := &MockExecutor{}
		s := newTestSession(exec)
		res := s.Scroll(context.Background(), "sideways")
		require.False(t, res.OK)
		assert.Equal(t, FailBadArgument, res.Reason)
	})
}

func TestFocusTab_BoundsChecked(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)

	res := s.FocusTab(context.Background(), 5)
	require.False(t, res.OK)
	assert.Equal(t, FailTabOutOfRange, res.Reason)

	res = s.FocusTab(context.Background(), -1)
	assert.False(t, res.OK)
}

func TestCloseTab_RefusesLastTab(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)

	res := s.CloseTab(context.Background())
	require.False(t, res.OK)
	assert.Equal(t, FailTabOutOfRange, res.Reason)
	assert.Equal(t, 1, s.TabCount())
}

func TestNavigateTo_SettlesOnURLChange(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)

	exec.On("Location", mock.Anything).Return("https://a.example/", nil).Once()
	exec.On("Navigate", mock.Anything, "https://b.example/").Return(nil)
	exec.On("Location", mock.Anything).Return("https://b.example/", nil).Once()
	exec.On("Sleep", mock.Anything, s.cfg.Network.SettleDelay).Return(nil)

	require.NoError(t, s.NavigateTo(context.Background(), "https://b.example/"))
	exec.AssertExpectations(t)
}

func TestNavigateTo_NoSettleWhenURLUnchanged(t *testing.T) {
	exec := &MockExecutor{}
	s := newTestSession(exec)

	exec.On("Location", mock.Anything).Return("https://a.example/", nil)
	exec.On("Navigate", mock.Anything, "https://a.example/").Return(nil)

	require.NoError(t, s.NavigateTo(context.Background(), "https://a.example/"))
	exec.AssertNotCalled(t, "Sleep", mock.Anything, mock.Anything)
}

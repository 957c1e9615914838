// File: internal/agent/mocks_test.go
package agent_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/wayfarer-cli/internal/browser"
	"github.com/xkilldash9x/wayfarer-cli/internal/extract"
)

// MockModel mocks the agent.ModelClient interface.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

// MockDriver mocks the agent.Driver interface.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Observe(ctx context.Context) (*browser.Observation, error) {
	args := m.Called(ctx)
	obs, _ := args.Get(0).(*browser.Observation)
	return obs, args.Error(1)
}

func (m *MockDriver) Click(ctx context.Context, obs *browser.Observation, id int) browser.ActionResult {
	return m.Called(ctx, obs, id).Get(0).(browser.ActionResult)
}

func (m *MockDriver) Hover(ctx context.Context, obs *browser.Observation, id int) browser.ActionResult {
	return m.Called(ctx, obs, id).Get(0).(browser.ActionResult)
}

func (m *MockDriver) Type(ctx context.Context, obs *browser.Observation, id int, text string, submit bool) browser.ActionResult {
	return m.Called(ctx, obs, id, text, submit).Get(0).(browser.ActionResult)
}

func (m *MockDriver) Press(ctx context.Context, combo string) browser.ActionResult {
	return m.Called(ctx, combo).Get(0).(browser.ActionResult)
}

func (m *MockDriver) Scroll(ctx context.Context, direction string) browser.ActionResult {
	return m.Called(ctx, direction).Get(0).(browser.ActionResult)
}

func (m *MockDriver) NavigateTo(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) GoBack(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) GoForward(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) NewTab(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) FocusTab(ctx context.Context, index int) browser.ActionResult {
	return m.Called(ctx, index).Get(0).(browser.ActionResult)
}

func (m *MockDriver) CloseTab(ctx context.Context) browser.ActionResult {
	return m.Called(ctx).Get(0).(browser.ActionResult)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	shot, _ := args.Get(0).([]byte)
	return shot, args.Error(1)
}

func (m *MockDriver) Evaluate(ctx context.Context, expression string, out any) error {
	return m.Called(ctx, expression, out).Error(0)
}

// MockExtractor mocks the agent.Extractor interface.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Capture(ctx context.Context, page extract.PageReader, label string) (int, error) {
	args := m.Called(ctx, page, label)
	return args.Int(0), args.Error(1)
}

func (m *MockExtractor) FinalScreenshot(ctx context.Context, page extract.PageReader) (string, error) {
	args := m.Called(ctx, page)
	return args.String(0), args.Error(1)
}

func (m *MockExtractor) Save() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockExtractor) RowCount() int {
	return m.Called().Int(0)
}

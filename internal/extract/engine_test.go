// File: internal/extract/engine_test.go
package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPage struct {
	mock.Mock
}

func (m *mockPage) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockPage) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockPage) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var b []byte
	if v := args.Get(0); v != nil {
		b = v.([]byte)
	}
	return b, args.Error(1)
}

func (m *mockPage) Evaluate(ctx context.Context, expr string, out any) error {
	args := m.Called(ctx, expr, out)
	if tables, ok := args.Get(1).([][][]string); ok {
		*(out.(*[][][]string)) = tables
	}
	return args.Error(0)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveCSV(rows [][]string) (string, error) {
	args := m.Called(rows)
	return args.String(0), args.Error(1)
}

func (m *mockStore) SaveScreenshot(fileLabel, hashPrefix string, data []byte) (string, error) {
	args := m.Called(fileLabel, hashPrefix, data)
	return args.String(0), args.Error(1)
}

// table3x4 is one header row plus three data rows.
var table3x4 = [][]string{
	{"Name", "Price", "Change"},
	{"ACME", "101.2", "+0.5"},
	{"Globex", "88.0", "-1.1"},
	{"Initech", "45.9", "+2.3"},
}

func pageWithTables(url, title string, tables [][][]string) *mockPage {
	p := &mockPage{}
	p.On("CurrentURL", mock.Anything).Return(url, nil)
	p.On("Title", mock.Anything).Return(title, nil)
	p.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(nil, tables)
	return p
}

func TestCapture_SingleTable(t *testing.T) {
	store := &mockStore{}
	e := NewEngine(store, zap.NewNop())
	page := pageWithTables("https://finance.example/quotes", "Market Overview", [][][]string{table3x4})

	added, err := e.Capture(context.Background(), page, "quotes")
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	rows := e.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Page", "Source_URL", "Name", "Price", "Change"}, rows[0])
	assert.Equal(t, []string{"quotes", "https://finance.example/quotes", "ACME", "101.2", "+0.5"}, rows[1])
	assert.Equal(t, []string{"quotes", "https://finance.example/quotes", "Initech", "45.9", "+2.3"}, rows[3])
}

func TestCapture_DedupSecondPassAddsNothing(t *testing.T) {
	store := &mockStore{}
	e := NewEngine(store, zap.NewNop())
	page := pageWithTables("https://finance.example/quotes", "Market Overview", [][][]string{table3x4})
	page.On("HTML", mock.Anything).Return("<html>same</html>", nil)
	page.On("Screenshot", mock.Anything).Return([]byte{1, 2, 3}, nil)
	store.On("SaveScreenshot", mock.Anything, mock.Anything, mock.Anything).Return("out/snap.png", nil)

	added, err := e.Capture(context.Background(), page, "quotes")
	require.NoError(t, err)
	require.Equal(t, 3, added)

	// Unchanged page: the table fingerprint is already known, so the second
	// pass adds zero rows and falls back to the screenshot path.
	added, err = e.Capture(context.Background(), page, "quotes")
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Len(t, e.Rows(), 4)
}

func TestCapture_SkipsTinyTables(t *testing.T) {
	store := &mockStore{}
	e := NewEngine(store, zap.NewNop())
	page := pageWithTables("https://a.example/", "Layout", [][][]string{
		{{"only one row"}},
	})
	page.On("HTML", mock.Anything).Return("<html>x</html>", nil)
	page.On("Screenshot", mock.Anything).Return([]byte{9}, nil)
	store.On("SaveScreenshot", mock.Anything, mock.Anything, mock.Anything).Return("out/snap.png", nil)

	added, err := e.Capture(context.Background(), page, "")
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Empty(t, e.Rows())
}

func TestCapture_HeaderInsertedOnce(t *testing.T) {
	store := &mockStore{}
	e := NewEngine(store, zap.NewNop())

	second := [][]string{
		{"Name", "Price", "Change"},
		{"Umbrella", "12.0", "0.0"},
		{"Stark", "310.5", "+9.9"},
	}

	page1 := pageWithTables("https://a.example/p1", "One", [][][]string{table3x4})
	page2 := pageWithTables("https://a.example/p2", "Two", [][][]string{second})

	_, err := e.Capture(context.Background(), page1, "")
	require.NoError(t, err)
	_, err = e.Capture(context.Background(), page2, "")
	require.NoError(t, err)

	rows := e.Rows()
	require.Len(t, rows, 6)
	headerCount := 0
	for _, r := range rows {
		if r[0] == "Page" {
			headerCount++
		}
	}
	assert.Equal(t, 1, headerCount)
}

func TestCapture_ScreenshotFallbackDedup(t *testing.T) {
	store := &mockStore{}
	e := NewEngine(store, zap.NewNop())
	page := pageWithTables("https://a.example/", "No Tables Here", nil)
	page.On("HTML", mock.Anything).Return("<html>static</html>", nil)
	page.On("Screenshot", mock.Anything).Return([]byte{1}, nil)
	store.On("SaveScreenshot", mock.Anything, mock.Anything, mock.Anything).Return("out/snap.png", nil).Once()

	_, err := e.Capture(context.Background(), page, "")
	require.NoError(t, err)
	// Same content again: hash already seen, no second screenshot.
	_, err = e.Capture(context.Background(), page, "")
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "SaveScreenshot", 1)
}

func TestSave(t *testing.T) {
	t.Run("empty run saves nothing", func(t *testing.T) {
		store := &mockStore{}
		e := NewEngine(store, zap.NewNop())
		path, err := e.Save()
		require.NoError(t, err)
		assert.Empty(t, path)
		store.AssertNotCalled(t, "SaveCSV", mock.Anything)
	})

	t.Run("writes accumulated rows", func(t *testing.T) {
		store := &mockStore{}
		e := NewEngine(store, zap.NewNop())
		page := pageWithTables("https://a.example/", "Data", [][][]string{table3x4})
		_, err := e.Capture(context.Background(), page, "lbl")
		require.NoError(t, err)

		store.On("SaveCSV", e.Rows()).Return("out/collected_data.csv", nil)
		path, err := e.Save()
		require.NoError(t, err)
		assert.Equal(t, "out/collected_data.csv", path)
	})
}

func TestPageLabel(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		title string
		want  string
	}{
		{
			name:  "domain path and title",
			url:   "https://www.finance.example.com/markets/quotes?x=1",
			title: "Market Overview | Live Prices",
			want:  "finance-markets-quotes-Market-Overview-Live",
		},
		{
			name:  "root path falls back to hostname",
			url:   "https://news.example.org/",
			title: "",
			want:  "news-newsexampleorg",
		},
		{
			name:  "strips disallowed characters",
			url:   "https://a.example/p@th/se$g",
			title: "Héllo World Wide",
			want:  "a-pth-seg-Hllo-World-Wide",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PageLabel(tt.url, tt.title)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 60)
		})
	}
}

func TestFileLabel(t *testing.T) {
	assert.Equal(t, "report_2024_Q1", FileLabel("report 2024/Q1"))
	long := FileLabel("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.LessOrEqual(t, len(long), 40)
}

func TestFinalScreenshot(t *testing.T) {
	page := &mockPage{}
	page.On("Screenshot", mock.Anything).Return([]byte{0x89, 0x50, 0x4e, 0x47}, nil)

	store := &mockStore{}
	store.On("SaveScreenshot", "final_page", mock.Anything, []byte{0x89, 0x50, 0x4e, 0x47}).
		Return("out/snapshot_final_page_deadbeef.png", nil).Once()

	e := NewEngine(store, zap.NewNop())
	path, err := e.FinalScreenshot(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "out/snapshot_final_page_deadbeef.png", path)
	store.AssertExpectations(t)
}

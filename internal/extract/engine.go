// File: internal/extract/engine.go
package extract

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// PageReader is the slice of a browser session the engine needs: enough to
// enumerate tables, fingerprint content, and capture a screenshot.
type PageReader interface {
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, expr string, out any) error
}

// Store persists the run's artifacts.
type Store interface {
	SaveCSV(rows [][]string) (string, error)
	SaveScreenshot(fileLabel, hashPrefix string, data []byte) (string, error)
}

// tableScript collects every table on the page as trimmed cell text.
const tableScript = `(function() {
	const out = [];
	for (const table of document.querySelectorAll('table')) {
		const rows = [];
		for (const tr of table.querySelectorAll('tr')) {
			const cells = [];
			for (const c of tr.querySelectorAll('th, td')) {
				cells.push((c.innerText || '').trim());
			}
			rows.push(cells);
		}
		out.push(rows);
	}
	return out;
})()`

// Engine accumulates extracted rows across a whole run and deduplicates
// repeat captures of unchanged content. Tables are the primary artifact; a
// full-page screenshot is the fallback when a page state yields no new rows.
type Engine struct {
	logger *zap.Logger
	store  Store

	seen map[string]struct{}
	rows [][]string
}

// NewEngine creates an empty extraction engine.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{
		logger: logger.Named("extract"),
		store:  store,
		seen:   make(map[string]struct{}),
	}
}

// RowCount returns the number of accumulated rows, header included.
func (e *Engine) RowCount() int {
	return len(e.rows)
}

// Rows returns the accumulated rows. The caller must not mutate them.
func (e *Engine) Rows() [][]string {
	return e.rows
}

// Capture extracts data from the current page. Tables with at least two rows
// are fingerprinted by header, first data row, and last row; unseen tables
// are appended to the run's row set, prefixed with the page label and URL.
// On the first successful table a synthesized header row is inserted. When no
// table yields new data, an unseen full-page content state produces a
// screenshot instead. Returns the number of data rows added.
func (e *Engine) Capture(ctx context.Context, page PageReader, explicitLabel string) (int, error) {
	pageURL, err := page.CurrentURL(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read page URL: %w", err)
	}
	title, _ := page.Title(ctx)

	label := explicitLabel
	if label == "" {
		label = PageLabel(pageURL, title)
	}

	var tables [][][]string
	if err := page.Evaluate(ctx, tableScript, &tables); err != nil {
		return 0, fmt.Errorf("table enumeration failed: %w", err)
	}

	added := 0
	for _, rawRows := range tables {
		n := e.captureTable(rawRows, label, pageURL)
		added += n
	}

	if added > 0 {
		e.logger.Info("Extracted table data", zap.Int("rows", added), zap.String("label", label))
		return added, nil
	}

	if err := e.captureFallback(ctx, page, label); err != nil {
		e.logger.Warn("Screenshot fallback failed", zap.Error(err))
	}
	return 0, nil
}

// captureTable appends one table's data rows if its fingerprint is new.
func (e *Engine) captureTable(rawRows [][]string, label, pageURL string) int {
	if len(rawRows) < 2 {
		return 0
	}

	fp := tableFingerprint(rawRows)
	if _, dup := e.seen[fp]; dup {
		return 0
	}
	e.seen[fp] = struct{}{}

	if len(e.rows) == 0 {
		header := append([]string{"Page", "Source_URL"}, rawRows[0]...)
		e.rows = append(e.rows, header)
	}

	for _, dataRow := range rawRows[1:] {
		row := append([]string{label, pageURL}, dataRow...)
		e.rows = append(e.rows, row)
	}
	return len(rawRows) - 1
}

// captureFallback saves a screenshot for a page state not seen before.
func (e *Engine) captureFallback(ctx context.Context, page PageReader, label string) error {
	html, err := page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page content: %w", err)
	}

	sum := md5.Sum([]byte(html))
	contentHash := hex.EncodeToString(sum[:])
	if _, dup := e.seen[contentHash]; dup {
		return nil
	}
	e.seen[contentHash] = struct{}{}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}

	path, err := e.store.SaveScreenshot(FileLabel(label), contentHash[:8], shot)
	if err != nil {
		return err
	}
	e.logger.Info("No new tables, saved page screenshot", zap.String("path", path))
	return nil
}

// FinalScreenshot captures the page as it stands at the end of a run. Used
// when the whole run produced no tabular data, so something is persisted.
func (e *Engine) FinalScreenshot(ctx context.Context, page PageReader) (string, error) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}
	sum := md5.Sum(shot)
	return e.store.SaveScreenshot("final_page", hex.EncodeToString(sum[:])[:8], shot)
}

// Save writes the accumulated rows out as a single CSV. Returns the file
// path, or empty when nothing was collected.
func (e *Engine) Save() (string, error) {
	if len(e.rows) == 0 {
		return "", nil
	}
	path, err := e.store.SaveCSV(e.rows)
	if err != nil {
		return "", err
	}
	e.logger.Info("Saved collected data",
		zap.Int("data_rows", len(e.rows)-1), zap.String("path", path))
	return path, nil
}

// tableFingerprint identifies a table by its header, first data row, and
// last row. Tables differing only in middle rows collide; accepted as lossy.
func tableFingerprint(rawRows [][]string) string {
	join := func(cells []string) string {
		return strings.Join(cells, "\x1f")
	}
	return join(rawRows[0]) + "\x1e" + join(rawRows[1]) + "\x1e" + join(rawRows[len(rawRows)-1])
}

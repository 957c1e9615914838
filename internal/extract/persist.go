// File: internal/extract/persist.go
package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes run artifacts into a single output directory.
type FileStore struct {
	dir     string
	csvName string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created on
// first write, not here.
func NewFileStore(dir, csvName string) *FileStore {
	return &FileStore{dir: dir, csvName: csvName}
}

// SaveCSV writes all rows into one delimited file, overwriting any previous
// run's output.
func (s *FileStore) SaveCSV(rows [][]string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, s.csvName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write rows: %w", err)
	}
	return path, nil
}

// SaveScreenshot stores a screenshot as snapshot_<label>_<hash>.png.
func (s *FileStore) SaveScreenshot(fileLabel, hashPrefix string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("snapshot_%s_%s.png", fileLabel, hashPrefix))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

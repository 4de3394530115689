// Package export reads and writes the per-day pipeline artifacts under the
// data directory.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves artifact paths below a data directory.
type Layout struct {
	DataDir string
}

// RawJSON is the fetch stage output of day.
func (l Layout) RawJSON(day string) string {
	return filepath.Join(l.DataDir, "raw", day+".json")
}

// ProcessedJSON is the NLP stage output of day.
func (l Layout) ProcessedJSON(day string) string {
	return filepath.Join(l.DataDir, "processed", day+".json")
}

// ProcessedCSV is the tabular copy of the NLP stage output of day.
func (l Layout) ProcessedCSV(day string) string {
	return filepath.Join(l.DataDir, "processed", day+".csv")
}

// FeaturesCSV is the feature stage output of day.
func (l Layout) FeaturesCSV(day string) string {
	return filepath.Join(l.DataDir, "processed", "features", day+".csv")
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return writeFile(path, data)
}

// ReadJSON decodes the file at path into v. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

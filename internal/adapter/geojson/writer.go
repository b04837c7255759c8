// Package geojson writes farm FeatureCollections to disk.
package geojson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// FileWriter writes a FeatureCollection as UTF-8 JSON.
// It implements pipeline.Exporter.
type FileWriter struct{}

// NewFileWriter creates a GeoJSON file writer.
func NewFileWriter() *FileWriter { return &FileWriter{} }

// Export writes fc to path, creating parent directories as needed. The file
// is written to a temporary sibling and renamed into place, so a failed
// export never leaves a truncated file behind.
func (w *FileWriter) Export(ctx context.Context, path string, fc domain.FeatureCollection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// ReadFile decodes a FeatureCollection previously written by Export.
func ReadFile(path string) (domain.FeatureCollection, error) {
	var fc domain.FeatureCollection
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read geojson: %w", err)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("decode geojson: %w", err)
	}
	return fc, nil
}

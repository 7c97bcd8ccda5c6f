// Package atomicfile writes files via a temp-path-then-rename sequence so
// that partial output never appears at the final path, the contract format
// handlers rely on for crash-safe artifact writes.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write creates path atomically: content is streamed to a sibling temp file,
// which is closed, renamed into place, and chmod'd. On any failure the temp
// file is removed and path is left untouched (or unchanged, if it already
// existed).
func Write(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tempFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
	}()

	if err := write(tempFile); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	if err := os.Chmod(path, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set permissions on %s: %v\n", path, err)
	}

	return nil
}

// WriteBytes is a convenience wrapper over Write for already-materialized
// content.
func WriteBytes(path string, data []byte) error {
	return Write(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

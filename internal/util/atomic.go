// atomic.go provides write-temp-then-rename helpers so readers never observe
// a partially written file, matching the write path state.json relies on.
package util

import (
	"encoding/json"
	"fmt"
	"os"
)

// AtomicWriteFile writes data to path by first writing to path+".tmp" in the
// same directory, then renaming over the destination. The rename is atomic
// on the same filesystem, so a concurrent reader sees either the old
// contents or the new ones, never a partial write.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// AtomicWriteJSON marshals v with two-space indentation and writes it
// atomically to path via AtomicWriteFile.
func AtomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return AtomicWriteFile(path, data, 0644)
}

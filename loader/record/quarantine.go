package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Quarantine moves the input file and its sidecar state into quarantineDir,
// preserving them for manual inspection instead of deleting or retrying.
// Sidecars that were never written are skipped.
func Quarantine(filePath, quarantineDir string) error {
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}

	for _, path := range []string{filePath, filePath + TargetSuffix, filePath + StatusSuffix} {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		dest := filepath.Join(quarantineDir, filepath.Base(path))
		if err := os.Rename(path, dest); err != nil {
			return fmt.Errorf("quarantine %s: %w", path, err)
		}
	}
	return nil
}

// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2/maybe"
)

// WriteFile atomically replaces path with data. The parent directory is
// created if needed; a failed write leaves no file at path. Windows has no
// atomic replace and falls back to a plain write.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := maybe.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	slog.Debug("artifact written", "path", path, "bytes", len(data))
	return nil
}

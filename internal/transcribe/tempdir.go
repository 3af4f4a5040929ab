package transcribe

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// withTempDir runs fn inside a fresh directory under parent and removes the
// directory on every exit path. Removal failures are logged and never
// replace fn's error.
func withTempDir(parent, pattern string, logger *zap.Logger, fn func(dir string) error) error {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()
	return fn(dir)
}

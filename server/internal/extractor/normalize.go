package extractor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// NormalizeExtension renames path in place so that it ends with .ext.
// The content is left untouched: a stream whose codec does not fit the
// container ends up mislabeled, the same as with any other rename.
func NormalizeExtension(path, ext string) (string, error) {
	ext = "." + strings.TrimPrefix(ext, ".")

	if filepath.Ext(path) == ext {
		return path, nil
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("forcing %s extension: %w", ext, err)
	}

	slog.Info("renamed downloaded file",
		slog.String("from", filepath.Base(path)),
		slog.String("to", filepath.Base(target)),
	)

	return target, nil
}

package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/lrstanley/go-ytdlp"
)

// ResolveExecutable returns the yt-dlp binary to run. With install set a
// managed copy is fetched (or reused from cache) through go-ytdlp, otherwise
// path must be resolvable on the system.
func ResolveExecutable(ctx context.Context, path string, install bool) (string, error) {
	if install {
		res, err := ytdlp.Install(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("installing yt-dlp: %w", err)
		}

		slog.Info("using managed yt-dlp",
			slog.String("path", res.Executable),
			slog.String("version", res.Version),
		)
		return res.Executable, nil
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("yt-dlp executable %q not found: %w", path, err)
	}

	return resolved, nil
}

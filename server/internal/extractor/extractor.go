package extractor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// Extractor resolves url into a media file written according to template
// (an yt-dlp output template) and returns the path of the produced file.
type Extractor interface {
	Extract(ctx context.Context, url, template string) (string, error)
}

type Options struct {
	Executable  string
	Format      string
	MergeFormat string
	Timeout     time.Duration // zero means no limit
}

type YtDlp struct {
	opts Options
}

func NewYtDlp(opts Options) *YtDlp {
	if opts.Format == "" {
		opts.Format = "bestvideo+bestaudio/best"
	}
	if opts.MergeFormat == "" {
		opts.MergeFormat = "mp4"
	}
	return &YtDlp{opts: opts}
}

func (y *YtDlp) command(template string) *ytdlp.Command {
	dl := ytdlp.New().
		Format(y.opts.Format).
		MergeOutputFormat(y.opts.MergeFormat).
		Output(template).
		NoPlaylist().
		Quiet().
		NoWarnings().
		PrintJSON()

	if y.opts.Executable != "" {
		dl = dl.SetExecutable(y.opts.Executable)
	}
	return dl
}

func (y *YtDlp) Extract(ctx context.Context, url, template string) (string, error) {
	if y.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.opts.Timeout)
		defer cancel()
	}

	slog.Info("requesting download",
		slog.String("url", url),
		slog.String("template", template),
		slog.String("format", y.opts.Format),
	)

	result, err := y.command(template).Run(ctx, url)
	if err != nil {
		return "", err
	}

	filename := producedFile(result, template)
	if filename == "" {
		return "", errors.New("yt-dlp did not report the downloaded file")
	}

	return NormalizeExtension(filename, y.opts.MergeFormat)
}

// producedFile reads the realised filename from the info json printed by
// yt-dlp, falling back to whatever matches the template on disk.
func producedFile(result *ytdlp.Result, template string) string {
	if result != nil {
		info, err := result.GetExtractedInfo()
		if err == nil && len(info) > 0 && info[0].Filename != nil {
			return *info[0].Filename
		}
	}

	matches, err := filepath.Glob(strings.Replace(template, "%(ext)s", "*", 1))
	if err != nil || len(matches) == 0 {
		return ""
	}
	// partial fragments are never the final file
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") && !strings.HasSuffix(m, ".ytdl") {
			return m
		}
	}
	return ""
}

package rest

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marcopiovanello/yt-dlp-api/server/internal"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/queue"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/storage"
	"github.com/marcopiovanello/yt-dlp-api/server/metrics"
)

type Service struct {
	root    *storage.Root
	pool    *queue.Pool
	metrics *metrics.Metrics
}

func NewService(root *storage.Root, pool *queue.Pool, m *metrics.Metrics) *Service {
	return &Service{
		root:    root,
		pool:    pool,
		metrics: m,
	}
}

// Download fetches url into the storage root and returns the stored file
// path. The extraction runs on the pool; ctx only covers the wait.
func (s *Service) Download(ctx context.Context, url string) (string, error) {
	job := &internal.DownloadJob{
		Token:     uuid.NewString(),
		URL:       url,
		CreatedAt: time.Now(),
	}
	job.Template = s.root.Template(job.Token)

	s.metrics.InFlight.Inc()
	defer s.metrics.InFlight.Dec()

	res, err := s.pool.Submit(ctx, job)
	if err != nil {
		return "", err
	}

	result, err := s.pool.Await(ctx, res)
	if err != nil {
		slog.Warn("client left before download completed",
			slog.String("id", job.Token),
			slog.String("url", url),
		)
		return "", err
	}

	s.metrics.Duration.Observe(time.Since(job.CreatedAt).Seconds())

	if result.Err != nil {
		s.metrics.Downloads.WithLabelValues("failed").Inc()
		slog.Error("download failed",
			slog.String("id", job.Token),
			slog.String("url", url),
			slog.Any("err", result.Err),
		)
		return "", result.Err
	}

	s.metrics.Downloads.WithLabelValues("ok").Inc()

	if err := s.root.Track(ctx, result.Path); err != nil {
		slog.Warn("retention hook failed", slog.String("path", result.Path), slog.Any("err", err))
	}

	attrs := []any{
		slog.String("id", job.Token),
		slog.String("file", filepath.Base(result.Path)),
		slog.Duration("took", time.Since(job.CreatedAt)),
	}
	if size, err := fileSize(result.Path); err == nil {
		attrs = append(attrs, slog.String("size", humanize.Bytes(size)))
	}
	slog.Info("download completed", attrs...)

	return result.Path, nil
}

package rest

import (
	"github.com/marcopiovanello/yt-dlp-api/server/internal/queue"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/storage"
	"github.com/marcopiovanello/yt-dlp-api/server/metrics"
)

type ContainerArgs struct {
	Root    *storage.Root
	Pool    *queue.Pool
	Metrics *metrics.Metrics
}

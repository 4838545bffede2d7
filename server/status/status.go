package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/queue"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/storage"
	"github.com/marcopiovanello/yt-dlp-api/server/sys"
)

type Status struct {
	FreeSpace      uint64 `json:"free_space"`
	FreeSpaceHuman string `json:"free_space_human"`
	queue.Stats
}

type PoolStats interface {
	Stats() queue.Stats
}

func ApplyRouter(root *storage.Root, pool PoolStats) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", Handler(root, pool))
	}
}

func Handler(root *storage.Root, pool PoolStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		free, err := sys.FreeSpace(root.Dir())
		if err != nil {
			slog.Error("failed to read free space", slog.String("path", root.Dir()), slog.Any("err", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(Status{
			FreeSpace:      free,
			FreeSpaceHuman: humanize.Bytes(free),
			Stats:          pool.Stats(),
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

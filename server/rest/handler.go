package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/queue"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/storage"
)

const healthStatus = "YouTube Video Downloader API running"

type Handler struct {
	service *Service
	root    *storage.Root
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": healthStatus})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// an empty url is still a url, yt-dlp gets to reject it
	if !query.Has("url") {
		writeDetail(w, http.StatusUnprocessableEntity, "Missing required query parameter: url")
		return
	}

	path, err := h.service.Download(r.Context(), query.Get("url"))
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrStopped):
			writeDetail(w, http.StatusServiceUnavailable, "Server is shutting down")
		case r.Context().Err() != nil:
			// nobody is listening anymore
		default:
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Download failed: %s", err))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"filename": filepath.Base(path)})
}

func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	// chi routes on RawPath when it is set, the segment is then still escaped
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(filename)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "File not found")
			return
		}
		filename = unescaped
	}

	// names that could never have been produced by a download are answered
	// exactly like missing ones
	path, err := h.root.Resolve(filename)
	if err != nil {
		slog.Warn("rejected file request", slog.String("filename", filename))
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	fd, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeDetail(w, http.StatusNotFound, "File not found")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !info.Mode().IsRegular() {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": filename,
	}))

	http.ServeContent(w, r, filename, info.ModTime(), fd)
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// a stupid package name...
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/marcopiovanello/yt-dlp-api/server/config"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/extractor"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/queue"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/storage"
	"github.com/marcopiovanello/yt-dlp-api/server/metrics"
	middlewares "github.com/marcopiovanello/yt-dlp-api/server/middleware"
	"github.com/marcopiovanello/yt-dlp-api/server/rest"
	"github.com/marcopiovanello/yt-dlp-api/server/status"
	"github.com/marcopiovanello/yt-dlp-api/server/updater"
)

type serverConfig struct {
	root    *storage.Root
	pool    *queue.Pool
	metrics *metrics.Metrics
}

func Run(ctx context.Context) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	slog.SetDefault(newLogger(&conf.Logging))
	// ----------------------------------------------------------------

	executable, err := updater.ResolveExecutable(ctx, conf.Paths.DownloaderPath, conf.Downloader.AutoInstall)
	if err != nil {
		return err
	}

	root, err := storage.NewRoot(conf.Paths.DownloadPath, storage.NoRetention{})
	if err != nil {
		return err
	}

	ex := extractor.NewYtDlp(extractor.Options{
		Executable:  executable,
		Format:      conf.Downloader.Format,
		MergeFormat: conf.Downloader.MergeFormat,
		Timeout:     conf.Downloader.Timeout,
	})

	pool, err := queue.NewPool(conf.Server.QueueSize, ex)
	if err != nil {
		return err
	}
	pool.Start()

	scfg := serverConfig{
		root:    root,
		pool:    pool,
		metrics: metrics.New(),
	}

	srv := newServer(scfg)

	go gracefulShutdown(ctx, srv, &scfg)

	network, address := conf.Address()

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("yt-dlp-api started",
		slog.String("address", address),
		slog.String("storage", root.Dir()),
		slog.String("yt-dlp", executable),
		slog.Int("workers", conf.Server.QueueSize),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("http server stopped", slog.String("err", err.Error()))
		return err
	}

	return nil
}

func newLogger(c *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newServer(c serverConfig) *http.Server {
	r := chi.NewRouter()

	origins := config.Instance().Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders: []string{"*"},
	})

	r.Use(middleware.RequestID)
	r.Use(middlewares.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware.Handler)

	baseUrl := config.Instance().Server.BaseURL

	r.Route(baseUrl+"/", func(r chi.Router) {
		r.Group(rest.ApplyRouter(&rest.ContainerArgs{
			Root:    c.root,
			Pool:    c.pool,
			Metrics: c.metrics,
		}))

		// Status
		r.Route("/status", status.ApplyRouter(c.root, c.pool))

		r.Method(http.MethodGet, "/metrics", c.metrics.Handler())
	})

	return &http.Server{Handler: r}
}

func gracefulShutdown(ctx context.Context, srv *http.Server, cfg *serverConfig) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	// stopping the pool first releases every handler waiting on a download
	if err := cfg.pool.Stop(); err != nil {
		slog.Warn("download queue stopped with error", slog.Any("err", err))
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		slog.Warn("http server shutdown", slog.Any("err", err))
	}
}

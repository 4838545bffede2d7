package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marcopiovanello/yt-dlp-api/server"
	"github.com/marcopiovanello/yt-dlp-api/server/config"

	"github.com/spf13/viper"
)

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	if _, err := loadConfig(configFile); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}

// loadConfig fills config.Instance() from defaults, the YAML file at path
// (if any) and APP_ prefixed environment variables, in increasing priority.
func loadConfig(path string) (*config.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.queue_size", 4)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("paths.download_path", "downloads")
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("downloader.format", config.DefaultFormat)
	v.SetDefault("downloader.merge_format", config.DefaultMergeFormat)
	v.SetDefault("downloader.timeout", 0)
	v.SetDefault("downloader.auto_install", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Env binding, e.g. APP_SERVER_PORT
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load YAML file if exists
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults", slog.String("path", path))
	}

	cfg := config.Instance()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Server.QueueSize <= 0 {
		cfg.Server.QueueSize = 2
	}

	return cfg, nil
}

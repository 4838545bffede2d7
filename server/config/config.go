package config

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
}

type ServerConfig struct {
	BaseURL     string   `mapstructure:"base_url"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	QueueSize   int      `mapstructure:"queue_size"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PathsConfig struct {
	DownloadPath   string `mapstructure:"download_path"`
	DownloaderPath string `mapstructure:"downloader_path"`
}

type DownloaderConfig struct {
	Format      string        `mapstructure:"format"`
	MergeFormat string        `mapstructure:"merge_format"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AutoInstall bool          `mapstructure:"auto_install"`
}

const (
	DefaultFormat      = "bestvideo+bestaudio/best"
	DefaultMergeFormat = "mp4"
)

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
			instance.Server.QueueSize = 4
			instance.Paths.DownloadPath = "downloads"
			instance.Paths.DownloaderPath = "yt-dlp"
			instance.Downloader.Format = DefaultFormat
			instance.Downloader.MergeFormat = DefaultMergeFormat
		})
	}
	return instance
}

// Address the http server should listen on, a unix socket when Host is an
// absolute path.
func (c *Config) Address() (network, address string) {
	if strings.HasPrefix(c.Server.Host, "/") {
		return "unix", c.Server.Host
	}
	return "tcp", net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

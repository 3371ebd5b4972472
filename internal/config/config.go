// Package config loads the receiver configuration from YAML and watches the output
// toggles for changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/pb-receiver/internal/channels"
)

// Config defines the runtime configuration.
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Host      HostConfig      `yaml:"host"`
	Outputs   channels.Config `yaml:"outputs"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Recording RecordingConfig `yaml:"recording"`
	Log       LogConfig       `yaml:"log"`
}

// FeedConfig configures the body feed from the tracking master.
type FeedConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	SilenceTimeout time.Duration `yaml:"silence_timeout"` // no packet for this long = disconnected
}

// HostConfig configures the cook loop.
type HostConfig struct {
	FPS int `yaml:"fps"`
}

// HTTPConfig holds the listen addresses of the HTTP surfaces.
type HTTPConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	PprofAddr   string `yaml:"pprof_addr"`
}

// WebRTCConfig configures the data channel server.
type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers"`
	MaxClients  int      `yaml:"max_clients"`
}

// RecordingConfig configures channel recordings.
type RecordingConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	Color bool   `yaml:"color"`
}

// Default returns the built-in configuration. Positions are on, the rest off, as the
// plugin parameters default.
func Default() Config {
	return Config{
		Feed: FeedConfig{
			ListenAddr:     ":5005",
			SilenceTimeout: 2 * time.Second,
		},
		Host:    HostConfig{FPS: 30},
		Outputs: channels.Config{Positions: true},
		HTTP: HTTPConfig{
			Addr:        ":8081",
			MetricsAddr: ":9090",
		},
		WebRTC: WebRTCConfig{
			STUNServers: []string{"stun:stun.l.google.com:19302"},
			MaxClients:  10,
		},
		Recording: RecordingConfig{Path: "./recordings"},
		Log:       LogConfig{Level: "info", Color: true},
	}
}

// Load reads path on top of the defaults. Fields missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

const minSilenceTimeout = 10 * time.Millisecond

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Host.FPS <= 0 || c.Host.FPS > 240 {
		return fmt.Errorf("host.fps must be in 1..240, got %d", c.Host.FPS)
	}
	if c.Feed.ListenAddr == "" {
		return fmt.Errorf("feed.listen_addr is required")
	}
	if c.Feed.SilenceTimeout < minSilenceTimeout {
		return fmt.Errorf("feed.silence_timeout must be at least %v, got %v", minSilenceTimeout, c.Feed.SilenceTimeout)
	}
	if c.WebRTC.MaxClients < 0 {
		return fmt.Errorf("webrtc.max_clients must not be negative")
	}
	return nil
}

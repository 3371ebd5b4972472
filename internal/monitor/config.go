package monitor

import "time"

// Config defines the runtime configuration for the monitor server.
type Config struct {
	Addr          string
	KeepAlive     time.Duration // SSE keepalive comment interval
	PreviewWidth  int
	PreviewHeight int
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8081",
		KeepAlive:     30 * time.Second,
		PreviewWidth:  640,
		PreviewHeight: 480,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.KeepAlive <= 0 {
		c.KeepAlive = def.KeepAlive
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = def.PreviewWidth
	}
	if c.PreviewHeight <= 0 {
		c.PreviewHeight = def.PreviewHeight
	}
	return c
}

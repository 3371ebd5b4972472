package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/pb-receiver/internal/channels"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, channels.Config{Positions: true}, cfg.Outputs)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	writeFile(t, path, `
feed:
  listen_addr: ":6000"
  silence_timeout: 500ms
outputs:
  positions: false
  orientations: true
  confidences: true
host:
  fps: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Feed.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.Feed.SilenceTimeout)
	assert.Equal(t, channels.Config{Orientations: true, Confidences: true}, cfg.Outputs)
	assert.Equal(t, 60, cfg.Host.FPS)
	assert.Equal(t, ":8081", cfg.HTTP.Addr, "unset fields keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	writeFile(t, path, "host:\n  fps: 0\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "host.fps")
}

func TestValidateSilenceTimeout(t *testing.T) {
	cfg := Default()
	cfg.Feed.SilenceTimeout = time.Nanosecond
	assert.Error(t, cfg.Validate())

	cfg.Feed.SilenceTimeout = 10 * time.Millisecond
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestWatchReloadsOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	writeFile(t, path, "outputs:\n  positions: true\n")

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan channels.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c channels.Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	want := channels.Config{Confidences: true}
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	// Rewrite until the watcher has picked the file up; registration is asynchronous.
loop:
	for {
		select {
		case c := <-got:
			if c == want {
				break loop
			}
		case <-tick.C:
			writeFile(t, path, "outputs:\n  positions: false\n  confidences: true\n")
		case <-deadline:
			t.Fatal("watcher did not report the reload")
		}
	}

	cancel()
	require.NoError(t, <-done)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/internal/chop"
	"github.com/dj-oyu/pb-receiver/internal/config"
	"github.com/dj-oyu/pb-receiver/internal/feed"
	"github.com/dj-oyu/pb-receiver/internal/host"
	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/internal/monitor"
	"github.com/dj-oyu/pb-receiver/internal/recorder"
	"github.com/dj-oyu/pb-receiver/internal/webrtc"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Receive tracked skeletons and expose them as named channels",
		Long: `server listens for body packets from a tracking master, flattens every
visible body into a stable set of named channels once per host frame and serves
the result over SSE, WebRTC data channels, CSV recordings and Prometheus metrics.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				// Flags given on the command line win over the file.
				cfg = overlayFlags(cmd, loaded, cfg)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := logger.ParseLevel(cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			logger.Init(level, os.Stderr, cfg.Log.Color)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := NewServer(cfg, configPath)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file (watched for output changes)")
	f.StringVar(&cfg.Feed.ListenAddr, "listen", cfg.Feed.ListenAddr, "UDP address for body packets")
	f.DurationVar(&cfg.Feed.SilenceTimeout, "silence-timeout", cfg.Feed.SilenceTimeout, "Feed silence before the master is considered gone")
	f.IntVar(&cfg.Host.FPS, "fps", cfg.Host.FPS, "Host frame rate")
	f.BoolVar(&cfg.Outputs.Positions, "positions", cfg.Outputs.Positions, "Output joint positions")
	f.BoolVar(&cfg.Outputs.Orientations, "orientations", cfg.Outputs.Orientations, "Output joint orientations")
	f.BoolVar(&cfg.Outputs.Confidences, "confidences", cfg.Outputs.Confidences, "Output joint confidences")
	f.StringVar(&cfg.HTTP.Addr, "http", cfg.HTTP.Addr, "HTTP server address")
	f.StringVar(&cfg.HTTP.MetricsAddr, "metrics", cfg.HTTP.MetricsAddr, "Metrics server address (empty disables)")
	f.StringVar(&cfg.HTTP.PprofAddr, "pprof", cfg.HTTP.PprofAddr, "pprof server address (empty disables)")
	f.StringVar(&cfg.Recording.Path, "record-path", cfg.Recording.Path, "Recording output path")
	f.IntVar(&cfg.WebRTC.MaxClients, "max-clients", cfg.WebRTC.MaxClients, "Maximum WebRTC clients")
	f.StringSliceVar(&cfg.WebRTC.STUNServers, "stun", cfg.WebRTC.STUNServers, "STUN server URLs (comma-separated)")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error, silent)")
	f.BoolVar(&cfg.Log.Color, "log-color", cfg.Log.Color, "Enable colored log output")

	return cmd
}

// overlayFlags copies every explicitly set flag value from flagCfg onto fileCfg.
func overlayFlags(cmd *cobra.Command, fileCfg, flagCfg config.Config) config.Config {
	set := cmd.Flags().Changed
	if set("listen") {
		fileCfg.Feed.ListenAddr = flagCfg.Feed.ListenAddr
	}
	if set("silence-timeout") {
		fileCfg.Feed.SilenceTimeout = flagCfg.Feed.SilenceTimeout
	}
	if set("fps") {
		fileCfg.Host.FPS = flagCfg.Host.FPS
	}
	if set("positions") {
		fileCfg.Outputs.Positions = flagCfg.Outputs.Positions
	}
	if set("orientations") {
		fileCfg.Outputs.Orientations = flagCfg.Outputs.Orientations
	}
	if set("confidences") {
		fileCfg.Outputs.Confidences = flagCfg.Outputs.Confidences
	}
	if set("http") {
		fileCfg.HTTP.Addr = flagCfg.HTTP.Addr
	}
	if set("metrics") {
		fileCfg.HTTP.MetricsAddr = flagCfg.HTTP.MetricsAddr
	}
	if set("pprof") {
		fileCfg.HTTP.PprofAddr = flagCfg.HTTP.PprofAddr
	}
	if set("record-path") {
		fileCfg.Recording.Path = flagCfg.Recording.Path
	}
	if set("max-clients") {
		fileCfg.WebRTC.MaxClients = flagCfg.WebRTC.MaxClients
	}
	if set("stun") {
		fileCfg.WebRTC.STUNServers = flagCfg.WebRTC.STUNServers
	}
	if set("log-level") {
		fileCfg.Log.Level = flagCfg.Log.Level
	}
	if set("log-color") {
		fileCfg.Log.Color = flagCfg.Log.Color
	}
	return fileCfg
}

// Server wires the feed, the cook loop and every consumer together
type Server struct {
	cfg        config.Config
	configPath string

	metrics  *metrics.Metrics
	receiver *feed.Receiver
	status   *feed.Status
	params   *chop.Parameters
	operator *chop.Operator
	cooker   *host.Cooker
	recorder *recorder.Recorder
	webrtc   *webrtc.Server
	monitor  *monitor.Server

	httpServer    *http.Server
	metricsServer *http.Server
	pprofServer   *http.Server
}

// NewServer creates the server and binds the feed socket
func NewServer(cfg config.Config, configPath string) (*Server, error) {
	m := metrics.New()

	receiver, err := feed.Listen(cfg.Feed.ListenAddr, feed.Options{SilenceTimeout: cfg.Feed.SilenceTimeout})
	if err != nil {
		return nil, err
	}

	status := feed.NewStatus(func(connected bool) {
		m.SetFeedConnected(connected)
		if !connected {
			logger.Warn("Feed", "%s", feed.SearchingWarning)
		}
	})

	params := chop.NewParameters()
	params.SetOutputs(cfg.Outputs)
	op := chop.NewOperator(channels.NewEngine(nil), receiver, status)
	cooker := host.NewCooker(op, params, cfg.Host.FPS, m)

	rec := recorder.NewRecorder(cfg.Recording.Path, m)
	rtc := webrtc.NewServer(cfg.WebRTC.STUNServers, cfg.WebRTC.MaxClients, m)

	mon := monitor.NewServer(monitor.Config{Addr: cfg.HTTP.Addr}, monitor.Deps{
		Cooker:   cooker,
		Operator: op,
		Params:   params,
		Status:   status,
		Recorder: rec,
		WebRTC:   rtc,
		Metrics:  m,
	})

	cooker.AddSink("stream", mon.Broadcaster())
	cooker.AddSink("webrtc", rtc)
	cooker.AddSink("recorder", rec)

	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		metrics:    m,
		receiver:   receiver,
		status:     status,
		params:     params,
		operator:   op,
		cooker:     cooker,
		recorder:   rec,
		webrtc:     rtc,
		monitor:    mon,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           mon.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	if cfg.HTTP.MetricsAddr != "" {
		s.metricsServer = m.NewServer(cfg.HTTP.MetricsAddr)
	}
	if cfg.HTTP.PprofAddr != "" {
		s.pprofServer = &http.Server{
			Addr:              cfg.HTTP.PprofAddr,
			Handler:           http.DefaultServeMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// Run starts every component and blocks until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	logger.Info("Main", "pb-receiver starting...")
	logger.Info("Main", "  Feed: %s (silence timeout %v)", s.receiver.Addr(), s.cfg.Feed.SilenceTimeout)
	logger.Info("Main", "  Host: %d fps, outputs %+v", s.cfg.Host.FPS, s.cfg.Outputs)
	logger.Info("Main", "  HTTP server: %s", s.cfg.HTTP.Addr)
	logger.Info("Main", "  Metrics server: %s", s.cfg.HTTP.MetricsAddr)
	logger.Info("Main", "  Recording path: %s", s.cfg.Recording.Path)
	logger.Warn("Feed", "%s", feed.SearchingWarning)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.receiver.Run(ctx) })
	g.Go(func() error {
		s.status.Run(s.receiver.Events())
		return nil
	})
	g.Go(func() error { return s.cooker.Run(ctx) })
	g.Go(func() error {
		s.mirrorFeedStats(ctx)
		return nil
	})

	if s.configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, s.configPath, s.params.SetOutputs)
		})
	}

	for _, hs := range []*http.Server{s.httpServer, s.metricsServer, s.pprofServer} {
		if hs == nil {
			continue
		}
		g.Go(func() error {
			logger.Info("Main", "Listening on %s", hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http %s: %w", hs.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return s.shutdown()
	})

	err := g.Wait()
	logger.Info("Main", "Server stopped")
	return err
}

// mirrorFeedStats copies receiver counters into the metrics once a second
func (s *Server) mirrorFeedStats(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.receiver.Stats()
			s.metrics.FeedPackets.Store(stats.Packets)
			s.metrics.FeedRejected.Store(stats.Rejected)
		}
	}
}

// shutdown stops consumers and HTTP servers
func (s *Server) shutdown() error {
	logger.Info("Main", "Shutting down...")

	s.monitor.Close()

	var errs []error
	if err := s.recorder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("recorder: %w", err))
	}
	if err := s.webrtc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("webrtc: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, hs := range []*http.Server{s.httpServer, s.metricsServer, s.pprofServer} {
		if hs == nil {
			continue
		}
		if err := hs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http %s: %w", hs.Addr, err))
		}
	}
	return errors.Join(errs...)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ingex/internal/codec"
	"github.com/zsiec/ingex/internal/codec/ffmpeg"
	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/connect"
	"github.com/zsiec/ingex/internal/health"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/matrix"
	"github.com/zsiec/ingex/internal/player"
	"github.com/zsiec/ingex/internal/registry"
	"github.com/zsiec/ingex/internal/server"
	"github.com/zsiec/ingex/internal/sink"
	"github.com/zsiec/ingex/internal/source"
	"github.com/zsiec/ingex/internal/ui"
	"github.com/zsiec/ingex/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
		showTUI     bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showTUI, "tui", false, "Show the terminal dashboard while playing")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	// the dashboard owns the terminal
	if showTUI && (cfg.Logging.Output == "stdout" || cfg.Logging.Output == "stderr") {
		log.SetOutput(io.Discard)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting Ingex player")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	if err := run(cfg, log, showTUI); err != nil {
		log.WithError(err).Error("Player exited with error")
		if showTUI {
			fmt.Fprintf(os.Stderr, "ingex-player: %v\n", err)
		}
		os.Exit(1)
	}
	log.Info("Player shutdown complete")
}

func run(cfg *config.Config, log *logrus.Logger, showTUI bool) error {
	appLog := logger.FromLogrus(log)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools := codec.NewPools(ffmpeg.New(appLog), cfg.Player.DecoderPoolLimit, appLog)
	if err := pools.Open(); err != nil {
		return fmt.Errorf("failed to open decoder pools: %w", err)
	}
	defer pools.Close()

	reg, err := registry.New(sigCtx, cfg, appLog)
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}
	defer reg.Close()

	src, err := source.New(&cfg.Source, appLog)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	snk, err := sink.New(&cfg.Sink, appLog)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to open sink: %w", err)
	}

	m, err := matrix.Build(src, snk, connect.Env{
		Pools:     pools,
		Threads:   cfg.Player.FFmpegThreads,
		UseWorker: cfg.Player.WorkerThreads,
		Logger:    appLog,
	})
	if err != nil {
		src.Close()
		snk.Close()
		return fmt.Errorf("failed to connect streams: %w", err)
	}

	p := player.New("", src, snk, m, reg, player.OptionsFromConfig(cfg), appLog)
	defer func() {
		if err := p.Close(); err != nil {
			log.WithError(err).Warn("Failed to close player")
		}
	}()
	log.WithFields(logrus.Fields{
		"session_id":  p.ID(),
		"connections": m.Len(),
	}).Info("Streams connected")

	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// playback ending stops everything else
		defer cancel()
		return p.Run(gctx)
	})

	if cfg.Server.Enabled {
		srv := server.New(&cfg.Server, log, server.Deps{
			Session:  p,
			Pools:    pools,
			Registry: reg,
			Checkers: healthCheckers(cfg, pools, reg),
		})
		g.Go(func() error { return srv.Start(gctx) })
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics, log) })
	}

	if showTUI {
		g.Go(func() error {
			return ui.Run(gctx, func() ui.Snapshot {
				return ui.Snapshot{Session: p.Session(), Entries: p.Entries(), Pools: pools.Stats()}
			}, cancel)
		})
	}

	return g.Wait()
}

func healthCheckers(cfg *config.Config, pools *codec.Pools, reg registry.Registry) []health.Checker {
	checkers := []health.Checker{
		health.NewCodecChecker(pools.Library()),
		health.NewPoolChecker(pools),
	}
	if rr, ok := reg.(*registry.RedisRegistry); ok {
		checkers = append(checkers, health.NewRedisChecker(rr.Client()))
	}
	if cfg.Sink.Type == "raw" {
		checkers = append(checkers, health.NewSinkDirChecker(cfg.Sink.Dir))
	}
	return checkers
}

// serveMetrics exposes Prometheus metrics on their own port.
func serveMetrics(ctx context.Context, cfg config.MetricsConfig, log *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("addr", srv.Addr).Info("Starting metrics server")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

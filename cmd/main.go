package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/matchcast/internal/adapters/cache"
	"github.com/okian/matchcast/internal/adapters/dataset"
	"github.com/okian/matchcast/internal/adapters/http/api"
	"github.com/okian/matchcast/internal/adapters/http/site"
	"github.com/okian/matchcast/internal/adapters/http/swagger"
	app "github.com/okian/matchcast/internal/app"
	"github.com/okian/matchcast/internal/config"
	"github.com/okian/matchcast/internal/domain/features"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/pkg/logger"
	"github.com/okian/matchcast/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	// Training completes before the listener opens.
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	return serve(ctx, ln, newMux(ctx, svc), log)
}

// newService builds the prediction service from configuration.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	policy, err := features.ParseDatePolicy(cfg.DatePolicy)
	if err != nil {
		return nil, err
	}

	network := nn.DefaultConfig()
	network.Hidden = cfg.HiddenLayers
	network.Dropout = cfg.Dropout
	network.L2 = cfg.L2
	network.LearningRate = cfg.LearningRate
	network.Epochs = cfg.Epochs
	network.BatchSize = cfg.BatchSize

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithLoader(dataset.NewLoader(cfg.DataPath, dataset.WithLogger(log.Named("dataset")))),
		app.WithDatePolicy(policy),
		app.WithTestSize(cfg.TestSize),
		app.WithSeed(cfg.Seed),
		app.WithNetworkConfig(network),
		app.WithWarmupWorkers(cfg.WarmupWorkers),
	}

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cfg.RedisAddr != "" {
		rc, err := cache.Dial(ctx, cfg.RedisAddr, cache.WithTTL(ttl))
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "prediction cache enabled", logger.String("backend", "redis"), logger.String("addr", cfg.RedisAddr))
		opts = append(opts, app.WithCache(rc))
	} else if ttl > 0 {
		log.Info(ctx, "prediction cache enabled", logger.String("backend", "memory"))
		opts = append(opts, app.WithCache(cache.NewMemory(cache.WithTTL(ttl))))
	}

	return app.New(opts...), nil
}

// newMux registers every route on a fresh mux.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// serve runs the HTTP server on ln until ctx is done, then shuts it down.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

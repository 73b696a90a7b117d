// Command dbufstress hammers a lock-free double buffer with one writer and
// many readers, verifies that no read is torn and exports the counters to
// Prometheus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-dbuf/core/buffer"
	"github.com/momentics/hioload-dbuf/internal/config"
	"github.com/momentics/hioload-dbuf/internal/metrics"
	"github.com/momentics/hioload-dbuf/internal/stress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version information (set during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"

	// Command-line flags
	configFile = flag.String("config", getEnv("CONFIG_FILE", ""), "Path to configuration file")
	logLevel   = flag.String("log-level", getEnv("LOG_LEVEL", ""), "Log level (debug, info, warn, error); overrides log.level")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	level := cfg.Log.Level
	if *logLevel != "" {
		level = *logLevel
	}

	logger, err := initLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("Starting dbufstress",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("buildTime", buildTime),
		zap.String("configFile", *configFile),
	)

	newBuffer := buffer.New
	if cfg.Buffer.Mapped {
		newBuffer = buffer.NewMapped
	}
	buf, err := newBuffer(cfg.Buffer.Size)
	if err != nil {
		logger.Error("Failed to create double buffer", zap.Error(err))
		return 1
	}
	defer func() {
		if err := buf.Close(); err != nil {
			logger.Error("Failed to release double buffer", zap.Error(err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		m = metrics.NewMetrics(registry, buf)
		srv := startMetricsServer(cfg.Metrics.Address, registry, logger)
		defer stopMetricsServer(srv, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := stress.New(buf, cfg.Stress, logger, m).Run(ctx)
	if err != nil {
		logger.Error("Stress run failed", zap.Error(err))
		return 1
	}
	logger.Info("Buffer state", zap.Any("state", buf.DumpState()))

	if report.Tears > 0 {
		logger.Error("Torn reads detected", zap.Uint64("tears", report.Tears))
		return 2
	}
	logger.Info("dbufstress stopped gracefully")
	return 0
}

// newMetricsMux routes /metrics to registry and answers /health.
func newMetricsMux(registry *prometheus.Registry, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Debug("Health response not delivered", zap.Error(err))
		}
	})
	return mux
}

// startMetricsServer serves the metrics mux in the background.
func startMetricsServer(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newMetricsMux(registry, logger)}

	go func() {
		logger.Info("Starting metrics server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

// stopMetricsServer shuts srv down, logging rather than dropping failures.
func stopMetricsServer(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Error stopping metrics server", zap.Error(err))
	}
}

// initLogger initializes the zap logger based on the log level
func initLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	switch level {
	case "debug":
		config = zap.NewDevelopmentConfig()
	case "info", "warn", "error":
		config = zap.NewProductionConfig()
		config.Level = parseLogLevel(level)
	default:
		config = zap.NewProductionConfig()
	}

	return config.Build()
}

// parseLogLevel parses the log level string
func parseLogLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

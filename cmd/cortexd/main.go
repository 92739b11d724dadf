// Command cortexd is a thin bootstrap that wires configuration, logging,
// metrics, and the knowledge graph together, then blocks until signaled.
// It is ambient infrastructure, not a demo driver: it starts the graph
// and a metrics endpoint and leaves document ingestion to an external
// caller of the knowledge.Graph API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/lguibr/cortex/internal/config"
	"github.com/lguibr/cortex/internal/telemetry"
	"github.com/lguibr/cortex/knowledge"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("failed to set GOMAXPROCS")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("invalid log level")
	}
	logger = logger.Level(level)

	metrics := telemetry.NewMetrics()
	graph := knowledge.New(cfg, logger)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	sampleTicker := time.NewTicker(5 * time.Second)
	defer sampleTicker.Stop()

	logger.Info().Int("workers", cfg.Workers).Int("mailbox_size", cfg.MailboxSize).Msg("knowledge graph started")

loop:
	for {
		select {
		case <-stop:
			break loop
		case <-sampleTicker.C:
			metrics.Sample(
				graph.Engine().Processed(),
				graph.Engine().Dropped(),
				graph.Engine().ActorCount(),
				int(graph.ConceptCount()),
				graph.MaintenanceRuns(),
			)
		}
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = metricsServer.Shutdown(shutdownCtx)
	graph.Shutdown(shutdownCtx)

	logger.Info().Msg("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/config"
	"github.com/tspannhw/thermal-streamer/internal/monitor"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/platform/utils"
	"github.com/tspannhw/thermal-streamer/internal/sensor"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/auth"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/channel"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/ingest"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/transport"
	"github.com/tspannhw/thermal-streamer/internal/stats"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Exit codes are part of the operator interface: every fatal condition is
// distinguishable by exit status, not just a log message.
const (
	exitOk          = 0
	exitGeneric     = 1
	exitConfig      = 2
	exitAuth        = 3
	exitChannelOpen = 4
)

func exitCodeForError(err error) int {
	var configErr *config.ValidationError
	if errors.As(err, &configErr) {
		return exitConfig
	}
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return exitAuth
	}
	var openErr *channel.OpenError
	if errors.As(err, &openErr) {
		return exitChannelOpen
	}
	return exitGeneric
}

func startStreamLoop(configFile string, batchSizeOverride int, intervalOverride float64) int {

	logger.InitLogger()

	logger.Log.Info("Starting thermal-streamer")

	cfg, err := config.GetConfig(configFile)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Configuration error")
		return exitCodeForError(err)
	}

	if batchSizeOverride > 0 {
		cfg.BatchSize = batchSizeOverride
	}
	if intervalOverride > 0 {
		cfg.BatchInterval = time.Duration(intervalOverride * float64(time.Second))
	}

	logger.Log.Info("thermal-streamer configuration:\n", cfg)

	tokens, err := auth.NewTokenProvider(cfg)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build credential provider")
		return exitCodeForError(err)
	}

	client := transport.NewClient(cfg.HttpRequestTimeout, tokens)
	ch := channel.NewChannel(cfg, client)
	sink := stats.NewSink()
	ingestor := ingest.NewIngestor(cfg, ch, client, tokens, sink)
	producer := sensor.NewSimulatedProducer()

	monitorMux := mux.NewRouter()
	monitoringServer := monitor.NewMonitoringServer(monitorMux, ch, sink)
	monitoringServer.Routes()
	monitorSrv := utils.StartHTTPServer(cfg.MonitorListenAddr, "monitoring", monitorMux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := runStreamLoop(ctx, cfg, ch, ingestor, producer, sink)

	// Shutdown has begun: no new batches are accepted past this point and
	// any in-flight submit has already returned.
	sink.LogReport()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ch.Close(shutdownCtx); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Error closing channel")
	}

	utils.ShutdownHTTPServer(shutdownCtx, "monitoring", monitorSrv)

	logger.Log.Info("Shutdown complete")

	return exitCode
}

func runStreamLoop(ctx context.Context, cfg *config.Config, ch *channel.Channel, ingestor *ingest.Ingestor, producer sensor.Producer, sink *stats.Sink) int {

	offset, err := ch.Open(ctx)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to open channel")
		return exitCodeForError(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"channel": ch.Name(),
		"offset":  offset.String(),
	}).Info("Streaming started")

	batchCount := 0

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Shutdown requested, stopping batch loop")
			return exitOk
		default:
		}

		batchStart := time.Now()

		batch, err := producer.ReadBatch(ctx, cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("Shutdown requested, stopping batch loop")
				return exitOk
			}
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to read sensor batch")
			return exitGeneric
		}

		// The submit is allowed to complete (or time out on its own) even
		// when a shutdown signal arrives mid-flight.
		rows, err := ingestor.Submit(context.Background(), batch)
		if err != nil {
			var authErr *auth.AuthError
			var stateErr *channel.InvalidStateError
			if errors.As(err, &authErr) || errors.As(err, &stateErr) {
				logger.Log.WithFields(logrus.Fields{"error": err}).Error("Fatal ingestion error, stopping batch loop")
				return exitCodeForError(err)
			}

			// Batch-scoped failure: log it and move on to the next batch.
			logger.Log.WithFields(logrus.Fields{
				"error":      err,
				"batch_size": len(batch),
			}).Error("Batch submit failed")
		} else {
			logger.Log.WithFields(logrus.Fields{"rows": rows}).Debug("Batch accepted")
		}

		batchCount++
		if cfg.StatsReportBatchInterval > 0 && batchCount%cfg.StatsReportBatchInterval == 0 {
			sink.LogReport()
		}

		sleepTime := cfg.BatchInterval - time.Since(batchStart)
		if sleepTime > 0 {
			select {
			case <-time.After(sleepTime):
			case <-ctx.Done():
			}
		}
	}
}

package main

import (
	"context"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/config"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/sensor"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/auth"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/channel"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/transport"

	"github.com/sirupsen/logrus"
)

// startConnectionCheck walks the full connection path once: configuration,
// credentials, host discovery, channel open/status and a sample sensor
// batch.  It submits nothing.
func startConnectionCheck(configFile string) int {

	logger.InitLogger()

	logger.Log.Info("Checking ingestion service connectivity")

	cfg, err := config.GetConfig(configFile)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Configuration check failed")
		return exitCodeForError(err)
	}
	logger.Log.Info("Configuration check passed")

	tokens, err := auth.NewTokenProvider(cfg)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Credential check failed")
		return exitCodeForError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	token, err := tokens.GetToken(ctx)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Token acquisition failed")
		return exitCodeForError(err)
	}
	logger.Log.WithFields(logrus.Fields{"token_length": len(token)}).Info("Token acquisition passed")

	client := transport.NewClient(cfg.HttpRequestTimeout, tokens)
	ch := channel.NewChannel(cfg, client)

	host, err := ch.DiscoverIngestHost(ctx)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Ingest host discovery failed")
		return exitGeneric
	}
	logger.Log.WithFields(logrus.Fields{"ingest_host": host}).Info("Ingest host discovery passed")

	offset, err := ch.Open(ctx)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Channel open failed")
		return exitCodeForError(err)
	}
	logger.Log.WithFields(logrus.Fields{
		"channel": ch.Name(),
		"offset":  offset.String(),
	}).Info("Channel open passed")

	committed, err := ch.Status(ctx)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Channel status check failed")
	} else {
		logger.Log.WithFields(logrus.Fields{"committed_offset": committed.String()}).Info("Channel status passed")
	}

	producer := sensor.NewSimulatedProducer()
	batch, err := producer.ReadBatch(ctx, 3)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Sensor read failed")
		return exitGeneric
	}
	logger.Log.WithFields(logrus.Fields{
		"sample_temperature": batch[0].Temperature,
		"sample_humidity":    batch[0].Humidity,
		"sample_co2":         batch[0].CO2,
	}).Info("Sensor read passed")

	if err := ch.Close(ctx); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Channel close failed")
	}

	logger.Log.Info("All connectivity checks passed")
	return exitOk
}

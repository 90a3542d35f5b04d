package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sessiond/internal/artifact"
	"sessiond/internal/config"
	"sessiond/internal/gateway"
	"sessiond/internal/notify"
	"sessiond/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	ctx := context.Background()

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build artifact sink")
	}

	bus := notify.NewBus()
	defer bus.Close()

	engine := session.NewEngine(session.EngineConfig{
		Sink:          sink,
		ArtifactTTL:   time.Duration(cfg.ArtifactTTLHours) * time.Hour,
		Bus:           bus,
		ProgressGrace: time.Duration(cfg.ProgressGraceMs) * time.Millisecond,
	})

	natsServer, err := gateway.NewServer(cfg.NATSStoreDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start embedded NATS")
	}

	nc, err := natsServer.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to embedded NATS")
	}
	defer nc.Drain()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get JetStream context")
	}
	if err := gateway.EnsureStream(js); err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream stream")
	}

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	consumer := gateway.NewConsumer(engine, js, nc, bus)
	if err := consumer.Start(consumerCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}

	log.Info().
		Str("artifact_backend", cfg.ArtifactBackend).
		Str("store_dir", cfg.NATSStoreDir).
		Msg("sessiond started")

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done
	log.Info().Msg("shutting down...")

	consumer.Stop()
	consumerCancel()
	engine.CancelAll("daemon shutting down")
	nc.Drain()
	natsServer.Shutdown()
	log.Info().Msg("shutdown complete")
}

func buildSink(ctx context.Context, cfg *config.Config) (artifact.Sink, error) {
	switch cfg.ArtifactBackend {
	case "dir":
		return artifact.NewDirSink(cfg.ArtifactDir, cfg.ArtifactMaxBytes)
	case "s3":
		return artifact.NewS3Sink(ctx, artifact.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
			MaxBytes:     cfg.ArtifactMaxBytes,
		})
	default:
		return artifact.NewMemorySink(), nil
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/api"
	"github.com/MikeSquared-Agency/triage/internal/hermes"
	"github.com/MikeSquared-Agency/triage/internal/kafka"
	"github.com/MikeSquared-Agency/triage/internal/metrics"
	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/slack"
	"github.com/MikeSquared-Agency/triage/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the triage service (HTTP API, NATS consumer, Slack review loop)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cfg.LogLevel, os.Stdout)
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	slog.Info("triage starting", "port", cfg.Port, "provider", cfg.LLMProvider)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	pipeline := newPipeline(cfg, m)

	deps := processor.Deps{Model: cfg.Model(), Metrics: m}

	// Database (optional: runs are not recorded without it)
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		deps.Recorder = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, runs will not be recorded")
	}

	// NATS/Hermes
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		c, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer c.Close()
		hermesClient = c
		deps.Publisher = c
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Kafka mirror
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, slog.Default())
		defer producer.Close()
		deps.Sink = producer
		slog.Info("kafka producer ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Slack poster (optional: no review loop without it)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without review loop")
	}

	proc := processor.New(pipeline, deps, slog.Default())
	if err := proc.RestoreTrust(ctx); err != nil {
		slog.Warn("failed to restore routing trust", "error", err)
	}

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectTicketCreated, proc.HandleTicketCreated); err != nil {
			return fmt.Errorf("subscribe to ticket events: %w", err)
		}
		if deps.Notifier != nil {
			if err := hermesClient.Subscribe(hermes.SubjectSlackReaction, proc.HandleReaction); err != nil {
				return fmt.Errorf("subscribe to slack reactions: %w", err)
			}
		}
	}

	apiDeps := api.Deps{
		Triager:  proc,
		Reviews:  proc,
		Provider: cfg.LLMProvider,
		Model:    cfg.Model(),
	}
	if deps.Recorder != nil {
		apiDeps.Runs = deps.Recorder
	}
	if hermesClient != nil {
		apiDeps.Bus = hermesClient
	}
	srv := api.NewServer(cfg.Port, cfg.APIToken, apiDeps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("triage ready", "port", cfg.Port)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	slog.Info("triage stopped")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/infra"
	"github.com/loginguard/platform/internal/telemetry"
)

const defaultGroupID = "loginguard-telemetry-tail"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("telemetry tail failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("KAFKA_ENABLED is false; nothing to tail")
	}

	groupID := defaultGroupID
	if s := os.Getenv("TELEMETRY_TAIL_GROUP"); s != "" {
		groupID = s
	}

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, telemetry.MirrorTopic, groupID, cfg.KafkaEnabled, logger)
	defer consumer.Close()
	logger.Info("telemetry tail starting", "brokers", cfg.KafkaBrokers, "topic", telemetry.MirrorTopic, "group_id", groupID)

	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("telemetry tail shutting down")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var fv domain.FeatureVector
		if err := json.Unmarshal(msg.Value, &fv); err != nil {
			logger.Warn("undecodable telemetry message", "offset", msg.Offset, "error", err)
			continue
		}
		logger.Info("telemetry event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"username", fv.Username,
			"event", fv.Event,
			"failed_logins", fv.FailedLogins,
			"reputation_score", fv.ReputationScore,
			"is_working_hours", fv.IsWorkingHours,
			"session_duration_ms", fv.SessionDurationMS,
		)
	}
}

package outboxworker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Andrew920528/vibe-30/internal/config"
	"github.com/Andrew920528/vibe-30/internal/factory"
	"github.com/Andrew920528/vibe-30/internal/logger"
	"github.com/Andrew920528/vibe-30/internal/outbox"
)

// Run delivers events parked in the Postgres outbox to the configured sink
// and blocks until SIGINT/SIGTERM.
func Run() error {
	log := logger.New("vibe30-outbox-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("config")
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, closer, err := factory.NewOutboxQueue(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("event outbox unavailable")
		return err
	}
	defer func() { _ = closer.Close() }()

	sink := factory.NewEventSink(cfg, log)
	defer func() { _ = sink.Close() }()

	w := outbox.NewWorker(q, sink, outbox.Config{
		BatchSize: cfg.OutboxBatchSize,
		Interval:  cfg.OutboxInterval(),
	}, log)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("outbox worker exit")
		return err
	}
	return nil
}

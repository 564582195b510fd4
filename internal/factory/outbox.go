package factory

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/config"
	"github.com/Andrew920528/vibe-30/internal/outbox"
	storepg "github.com/Andrew920528/vibe-30/internal/store/postgres"
)

// NewOutboxQueue opens the Postgres event outbox and applies its schema.
// The returned closer releases the connection pool.
func NewOutboxQueue(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*outbox.PGQueue, io.Closer, error) {
	if cfg.PostgresDSN == "" {
		return nil, nil, fmt.Errorf("VIBE30_POSTGRES_DSN is required for the event outbox")
	}
	bootstrapCtx, cancel := context.WithTimeout(ctx, cfg.BootstrapTimeout())
	defer cancel()

	db, err := storepg.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := outbox.EnsureSchema(bootstrapCtx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Debug().Msg("event outbox ready")
	return outbox.NewPGQueue(db), db, nil
}

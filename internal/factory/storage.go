package factory

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/config"
	storepkg "github.com/Andrew920528/vibe-30/internal/store"
	storepg "github.com/Andrew920528/vibe-30/internal/store/postgres"
	storesqlite "github.com/Andrew920528/vibe-30/internal/store/sqlite"
)

// NewStore opens the store selected by cfg.DBDriver and applies its schema
// within the bootstrap timeout. The returned closer releases the database.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, io.Closer, error) {
	bootstrapCtx, cancel := context.WithTimeout(ctx, cfg.BootstrapTimeout())
	defer cancel()

	switch cfg.DBDriver {
	case config.DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("VIBE30_POSTGRES_DSN is required when VIBE30_DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := storepg.EnsureSchema(bootstrapCtx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres bootstrap: %w", err)
		}
		log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap completed")
		return storepg.NewWithDB(db), db, nil

	case config.DriverSQLite:
		st, err := storesqlite.New(bootstrapCtx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite bootstrap: %w", err)
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store bootstrap completed")
		return st, st.DB(), nil

	default:
		return nil, nil, fmt.Errorf("unknown VIBE30_DB_DRIVER: %s", cfg.DBDriver)
	}
}

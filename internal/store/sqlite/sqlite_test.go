package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Andrew920528/vibe-30/internal/store"
	"github.com/Andrew920528/vibe-30/internal/store/storetest"
)

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		s, err := New(context.Background(), filepath.Join(t.TempDir(), "vibe30.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.DB().Close() })
		return s
	})
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "x.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, NewWithDB(db).HealthPing(ctx))
}

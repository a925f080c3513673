package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"phaseline/internal/db"
	"phaseline/internal/migrate"
	"phaseline/internal/repo"
	"phaseline/internal/store"
	"phaseline/internal/store/storetest"
)

func openRepo(t *testing.T) store.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	r := repo.New(conn)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, openRepo)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	require.NoError(t, migrate.MigrateContext(ctx, conn))
	require.NoError(t, migrate.MigrateContext(ctx, conn))

	latest, err := migrate.Latest()
	require.NoError(t, err)
	v, err = migrate.Version(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, latest, v)
}

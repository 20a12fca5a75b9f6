package postgres

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schemaScripts are the SQL migrations, mounted as container init scripts.
func schemaScripts(t *testing.T) []string {
	t.Helper()
	scripts, err := filepath.Glob(filepath.Join("..", "migrations", "postgres", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, scripts, "no postgres migrations found")
	return scripts // Glob sorts, so 001_ runs first
}

// setupTestDB starts a migrated PostgreSQL container and returns a pool to it.
// The container is terminated when the test ends.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("strategy_lab"),
		postgres.WithUsername("lab"),
		postgres.WithPassword("lab"),
		postgres.WithInitScripts(schemaScripts(t)...),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)

	return pool
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}

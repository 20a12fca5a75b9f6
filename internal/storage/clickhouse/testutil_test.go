package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sqlComment   = regexp.MustCompile(`(?m)^\s*--.*$`)
	sqlSeparator = regexp.MustCompile(`;\s*`)
)

// setupTestDB starts a ClickHouse server, applies the schema and returns a
// connection to the "test" database. Both are released by t.Cleanup.
func setupTestDB(t *testing.T) *Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env:          map[string]string{"CLICKHOUSE_DB": "test"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready for connections").WithStartupTimeout(90*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s/test", endpoint))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	applySchema(t, conn)
	return conn
}

// applySchema executes every statement of ../migrations/clickhouse in file
// order. The native driver runs one statement per Exec.
func applySchema(t *testing.T, conn *Conn) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join("..", "migrations", "clickhouse", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		raw, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, stmt := range sqlSeparator.Split(sqlComment.ReplaceAllString(string(raw), ""), -1) {
			if stmt = strings.TrimSpace(stmt); stmt == "" {
				continue
			}
			require.NoError(t, conn.Exec(context.Background(), stmt), "apply %s", filepath.Base(file))
		}
	}
}


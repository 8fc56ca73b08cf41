//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/userstore/directorytest"
)

// setupPostgres starts a disposable PostgreSQL container and returns its DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gocred",
			"POSTGRES_PASSWORD": "gocred",
			"POSTGRES_DB":       "gocred",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("postgres://gocred:gocred@%s:%s/gocred?sslmode=disable", host, mappedPort.Port())
}

func TestDirectoryConformance(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	dir, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })

	require.NoError(t, dir.ApplyMigrations())
	// Second run must be a no-op.
	require.NoError(t, dir.ApplyMigrations())
	require.NoError(t, dir.Ping(ctx))

	directorytest.Run(t, func(t *testing.T) goCred.UserDirectory {
		_, err := dir.db.ExecContext(ctx, `TRUNCATE subjects`)
		require.NoError(t, err)
		return dir
	})
}

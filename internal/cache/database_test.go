//go:build database

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest) (testcontainers.Container, string) {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	return c, host
}

func exerciseStore(t *testing.T, backend Backend, connStr string) {
	ctx := context.Background()

	var s *SQLStore
	var err error
	// Servers may log readiness slightly before accepting connections.
	for i := 0; i < 10; i++ {
		s, err = NewSQLStore(ctx, backend, connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	c := NewCoordinator(s)
	changed, err := c.Upsert(ctx, sampleCycle("DISC-1", 4))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Upsert(ctx, sampleCycle("DISC-1", 4))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.Upsert(ctx, sampleCycle("DISC-1", 3))
	require.NoError(t, err)
	assert.True(t, changed)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, *list[0].ActiveDays)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalEntries)

	require.NoError(t, c.Clear(ctx))
}

func TestSQLStore_Postgres(t *testing.T) {
	c, host := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env:          map[string]string{"POSTGRES_HOST_AUTH_METHOD": "trust"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	})
	port, err := c.MappedPort(context.Background(), "5432")
	require.NoError(t, err)

	exerciseStore(t, PostgreSQLBackend, fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port()))
}

func TestSQLStore_MySQL(t *testing.T) {
	c, host := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "discotrack",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(90 * time.Second),
	})
	port, err := c.MappedPort(context.Background(), "3306")
	require.NoError(t, err)

	exerciseStore(t, MySQLBackend, fmt.Sprintf("root:secret123@tcp(%s:%s)/discotrack", host, port.Port()))
}

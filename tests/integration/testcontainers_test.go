// Package integration provides container-backed integration tests for the
// plan parser.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Nav1203/plan-parser/internal/startup"
)

// TestContainerSetup represents the test container infrastructure.
type TestContainerSetup struct {
	PostgresContainer testcontainers.Container
	RedisContainer    testcontainers.Container
	PostgresConnStr   string
	RedisAddr         string
	cleanup           func()
}

// SetupTestContainers initializes PostgreSQL and Redis containers for testing.
func SetupTestContainers(t *testing.T) *TestContainerSetup {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("plan_parser_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConnStr := fmt.Sprintf("postgres://test:test@%s:%s/plan_parser_test?sslmode=disable",
		pgHost, pgPort.Port())

	// Start Redis
	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &TestContainerSetup{
		PostgresContainer: pgContainer,
		RedisContainer:    redisContainer,
		PostgresConnStr:   pgConnStr,
		RedisAddr:         fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
		cleanup: func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate postgres container: %v", err)
			}
			if err := redisContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate redis container: %v", err)
			}
		},
	}
}

// Cleanup terminates all test containers.
func (s *TestContainerSetup) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// OpenDB connects to the containerized database, waiting for it to accept
// queries.
func (s *TestContainerSetup) OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := startup.Connect(context.Background(), "postgres", s.PostgresConnStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("Database not ready after 30 seconds")
		case <-time.After(100 * time.Millisecond):
		}
	}
	return db
}

// RunMigrations applies the repository schema to the test database.
func (s *TestContainerSetup) RunMigrations(t *testing.T, db *sql.DB) {
	t.Helper()

	const dir = "../../migrations"
	require.NoError(t, startup.EnsureDir(dir))

	mgr := startup.NewMigrationManager(db, dir, "postgres")
	status, err := mgr.Migrate(context.Background())
	require.NoError(t, err)
	require.True(t, status.UpToDate)
}

// skipUnlessIntegration skips the test in short mode or when Docker is not
// reachable.
func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("Docker not available")
	}
}

// isDockerAvailable checks if Docker is available for testing.
func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}

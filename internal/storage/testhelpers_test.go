package storage

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStore wraps a PostgresStore backed by a throwaway container
type TestStore struct {
	*PostgresStore
	container testcontainers.Container
}

// SetupTestStore starts a PostgreSQL container, connects and migrates
func SetupTestStore(t *testing.T) *TestStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	store, err := NewPostgresStore(connStr)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	_, filename, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(filename), "..", "..", "db", "migrations")
	if err := store.Migrate(migrationsPath); err != nil {
		store.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &TestStore{PostgresStore: store, container: pgContainer}
}

// Cleanup closes the connection and terminates the container
func (ts *TestStore) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if ts.PostgresStore != nil {
		ts.Close()
	}
	if ts.container != nil {
		if err := ts.container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}
}

// TruncateAll truncates all tables for test isolation
func (ts *TestStore) TruncateAll(t *testing.T) {
	t.Helper()

	for _, table := range []string{"transactions", "positions"} {
		if _, err := ts.conn.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

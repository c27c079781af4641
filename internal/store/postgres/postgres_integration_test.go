package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sweety-ai/sweety-chat/internal/store"
	"github.com/sweety-ai/sweety-chat/internal/store/storetest"
)

// postgresDSN returns SWEETY_POSTGRES_DSN, or starts a throwaway container when
// Docker is available. Otherwise the calling test is skipped.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("SWEETY_POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("SWEETY_POSTGRES_DSN not set and -short given; skipping postgres integration test")
	}
	// Skips (instead of panicking) when no Docker daemon is reachable.
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "sweety",
			"POSTGRES_PASSWORD": "sweety",
			"POSTGRES_DB":       "sweety",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://sweety:sweety@%s:%s/sweety?sslmode=disable", host, port.Port())
}

func TestPostgresStore_Compliance(t *testing.T) {
	dsn := postgresDSN(t)
	s, db, err := New(context.Background(), dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	defer func() { _ = db.Close() }()

	storetest.Run(t, func(*testing.T) store.Store { return s })
}

package test_utils

import (
	"context"
	"database/sql"
	"testing"

	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	pgName = "appointments"
	pgUser = "test_appointments"
	pgPass = "test_appointments"
)

// SetupPostgresDB starts a throwaway Postgres container and applies all
// migrations. The test is skipped when no container runtime is available.
func SetupPostgresDB(t *testing.T) *sql.DB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithDatabase(pgName),
		postgres.WithUsername(pgUser),
		postgres.WithPassword(pgPass),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Warnf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to read container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to read container port: %v", err)
	}
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Driver: database.DriverPostgres,
		Host:   host,
		Port:   port.Int(),
		User:   pgUser,
		Pass:   pgPass,
		Name:   pgName,
		Schema: "public",
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db, cfg); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return db
}

package testutils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/amirasaad/tenantledger/infra"
	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// PostgresEnabledEnv must be set for tests that start a Postgres container.
const PostgresEnabledEnv = "LEDGER_E2E_POSTGRES"

// MigrationsDir returns the absolute path of internal/migrations.
func MigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "../../internal/migrations")
}

// StartPostgres runs a throwaway Postgres container, applies the SQL
// migrations and returns a connected *gorm.DB. The test is skipped unless
// LEDGER_E2E_POSTGRES is set.
func StartPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() || os.Getenv(PostgresEnabledEnv) == "" {
		t.Skipf("set %s to run Postgres container tests", PostgresEnabledEnv)
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(
		ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := infra.NewDBConnection(&config.DB{
		Url:          dsn,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
		ConnMaxLife:  time.Hour,
	}, "test")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := infra.RunMigrations(db, MigrationsDir(), DiscardLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

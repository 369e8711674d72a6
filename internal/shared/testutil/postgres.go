// Package testutil reúne helpers de testes de integração
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/shared/db"
	"github.com/radieske/updown-rounds-poc/migrations"
)

// SetupTestDB conecta no Postgres de TEST_POSTGRES_DSN, aplica as migrations e
// limpa as tabelas ao final. Sem DSN (ou banco fora do ar) o teste é pulado
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}

	pg, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.PingContext(ctx); err != nil {
		pg.Close()
		t.Skipf("test postgres not available: %v", err)
	}

	if _, err := db.NewMigrator(pg, migrations.FS, zap.NewNop()).Up(ctx); err != nil {
		pg.Close()
		t.Fatalf("migrate test db: %v", err)
	}
	truncate(t, pg)

	t.Cleanup(func() {
		truncate(t, pg)
		pg.Close()
	})
	return pg
}

func truncate(t *testing.T, pg *sql.DB) {
	t.Helper()
	if _, err := pg.Exec(`TRUNCATE wagers, rounds, settlement_applications, wallet_ledger, wallets CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

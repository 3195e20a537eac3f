package postgres

import (
	"context"
	"os"
	"testing"

	"creditledger/internal/ledger"
	"creditledger/internal/ledger/ledgertest"
	"creditledger/internal/sessions"
	"creditledger/internal/sessions/sessionstest"
)

// These tests need a disposable database: TEST_DATABASE_URL is truncated freely.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := Open(context.Background(), url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repo.pool.Exec(context.Background(), `TRUNCATE credits, user_sessions`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresRepositoryConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return openTestRepo(t) })
}

func TestPostgresSessions(t *testing.T) {
	sessionstest.Run(t, func(t *testing.T) sessions.Store { return openTestRepo(t).Sessions() })
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://u@host/db", "pgx5://u@host/db"},
		{"pgx5://already", "pgx5://already"},
	}
	for _, tt := range tests {
		if got := migrateURL(tt.in); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

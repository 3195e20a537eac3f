package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"creditledger/internal/ledger"
	"creditledger/internal/ledger/ledgertest"
)

func TestMemoryStoreConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return New() })
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No file -> empty store
	s := NewFromFiles(dir)
	all, _ := s.List(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected empty store when seed file missing, got %d", len(all))
	}

	seed := `[
		{"date": "2025-06-01", "description": "Milk - damaged", "amount": "45.00"},
		{"date": "", "description": "broken", "amount": "1.00"},
		{"date": "2025-06-02", "description": "Eggs", "amount": 3.5}
	]`
	if err := os.WriteFile(filepath.Join(dir, "seed_credits.json"), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	all, _ = s.List(context.Background())
	if len(all) != 2 {
		t.Fatalf("expected 2 seeded credits, got %d", len(all))
	}
	if all[0].Date != "2025-06-02" || all[0].Amount.Cents != 350 {
		t.Fatalf("unexpected first credit: %+v", all[0])
	}
}

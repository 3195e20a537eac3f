package memory

import (
	"context"
	"fmt"
	"sync"

	"creditledger/internal/sheets"
)

var _ sheets.HistoryWriter = (*Store)(nil)

// Store collects history rows in memory.
type Store struct {
	mu   sync.Mutex
	rows []sheets.HistoryRow
}

func New() *Store {
	return &Store{}
}

func (s *Store) AppendHistory(_ context.Context, row sheets.HistoryRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	// Row 1 is the header.
	return fmt.Sprintf("mem:%d", len(s.rows)+1), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.HistoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.HistoryRow(nil), s.rows...)
}

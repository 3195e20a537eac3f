package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"creditledger/internal/core"
	"creditledger/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps credits in process memory. Ids come from a counter that is
// never rewound, so a deleted id is never handed out again.
type Store struct {
	mu     sync.Mutex
	lastID int64
	items  map[int64]core.Credit
	now    func() time.Time
}

func New() *Store {
	return &Store{
		items: make(map[int64]core.Credit),
		now:   time.Now,
	}
}

// NewFromFiles seeds the store from base/seed_credits.json when present.
// Each seed entry goes through the same validation as an API create.
func NewFromFiles(base string) *Store {
	s := New()
	path := filepath.Join(base, "seed_credits.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("Ignoring unreadable credit seed file", "path", path, "error", err)
		return s
	}
	for i, r := range raw {
		in, err := core.ValidateInput(r)
		if err != nil {
			slog.Warn("Skipping invalid seed credit", "path", path, "index", i, "error", err)
			continue
		}
		_, _ = s.Create(context.Background(), in)
	}
	return s
}

func (s *Store) List(_ context.Context) ([]core.Credit, error) {
	s.mu.Lock()
	out := make([]core.Credit, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c)
	}
	s.mu.Unlock()
	ledger.SortCredits(out)
	return out, nil
}

func (s *Store) ListByMonth(_ context.Context, q core.MonthQuery) ([]core.Credit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]core.Credit, 0)
	for _, c := range s.items {
		if q.Contains(c) {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	ledger.SortCredits(out)
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return core.Credit{}, fmt.Errorf("get credit %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) Create(_ context.Context, in core.CreditInput) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	c := core.Credit{
		ID:          s.lastID,
		Date:        in.Date,
		Description: in.Description,
		Amount:      in.Amount,
		CreatedAt:   s.now().UTC(),
	}
	s.items[c.ID] = c
	return c, nil
}

func (s *Store) Update(_ context.Context, id int64, p core.CreditPatch) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return core.Credit{}, fmt.Errorf("update credit %d: %w", id, core.ErrNotFound)
	}
	c = p.Apply(c)
	s.items[id] = c
	return c, nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Package ledgertest holds the behaviour every ledger.Store backend must share.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"creditledger/internal/core"
	"creditledger/internal/ledger"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) ledger.Store

func input(date, desc, amount string) core.CreditInput {
	m, err := core.ParseMoney(amount)
	if err != nil {
		panic(err)
	}
	return core.CreditInput{Date: date, Description: desc, Amount: m}
}

// Run executes the full conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateThenGet", func(t *testing.T) { testCreateThenGet(t, newStore(t)) })
	t.Run("UpdateAmount", func(t *testing.T) { testUpdateAmount(t, newStore(t)) })
	t.Run("UpdateUnknown", func(t *testing.T) { testUpdateUnknown(t, newStore(t)) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newStore(t)) })
	t.Run("IDsNeverReused", func(t *testing.T) { testIDsNeverReused(t, newStore(t)) })
	t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, newStore(t)) })
	t.Run("ListByMonth", func(t *testing.T) { testListByMonth(t, newStore(t)) })
	t.Run("ListByMonthInvalid", func(t *testing.T) { testListByMonthInvalid(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
}

func testCreateThenGet(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	in := input("2025-06-01", "Milk - damaged", "45.00")
	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID <= 0 || created.CreatedAt.IsZero() {
		t.Fatalf("create must assign id and createdAt: %+v", created)
	}
	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Date != in.Date || got.Description != in.Description || got.Amount != in.Amount {
		t.Fatalf("get returned %+v, want fields of %+v", got, in)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("createdAt changed between create and get: %v vs %v", created.CreatedAt, got.CreatedAt)
	}
}

func testUpdateAmount(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, input("2025-06-01", "Eggs", "12.50"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	amount := core.Money{Cents: 500}
	updated, err := s.Update(ctx, created.ID, core.CreditPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, c := range []core.Credit{updated, got} {
		if c.Amount.Cents != 500 {
			t.Fatalf("amount not updated: %+v", c)
		}
		if c.ID != created.ID || c.Date != created.Date || c.Description != created.Description || !c.CreatedAt.Equal(created.CreatedAt) {
			t.Fatalf("update touched other fields: %+v vs %+v", c, created)
		}
	}

	date := "2025-07-02"
	desc := "Eggs, bread"
	updated, err = s.Update(ctx, created.ID, core.CreditPatch{Date: &date, Description: &desc})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if updated.Date != date || updated.Description != desc || updated.Amount.Cents != 500 {
		t.Fatalf("unexpected second update: %+v", updated)
	}
}

func testUpdateUnknown(t *testing.T, s ledger.Store) {
	amount := core.Money{Cents: 100}
	_, err := s.Update(context.Background(), 999999, core.CreditPatch{Amount: &amount})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDeleteIdempotent(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, input("2025-06-01", "Bread", "3.20"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := s.Delete(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("first delete: ok=%v err=%v", ok, err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get after delete: expected ErrNotFound, got %v", err)
	}
	ok, err = s.Delete(ctx, created.ID)
	if err != nil || ok {
		t.Fatalf("second delete: ok=%v err=%v", ok, err)
	}
}

func testIDsNeverReused(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	first, err := s.Create(ctx, input("2025-06-01", "A", "1.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.Create(ctx, input("2025-06-01", "B", "1.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Delete(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, err := s.Create(ctx, input("2025-06-01", "C", "1.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if third.ID == second.ID || third.ID == first.ID || third.ID < second.ID {
		t.Fatalf("id reused or went backwards: first=%d second=%d third=%d", first.ID, second.ID, third.ID)
	}
}

func testListOrdering(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a, _ := s.Create(ctx, input("2025-06-01", "A", "1.00"))
	b, _ := s.Create(ctx, input("2025-06-03", "B", "1.00"))
	c, _ := s.Create(ctx, input("2025-06-01", "C", "1.00"))

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{b.ID, c.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("list returned %d credits, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: id %d, want %d", i, got[i].ID, id)
		}
	}
}

func testListByMonth(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	june, err := s.Create(ctx, input("2025-06-01", "Milk - damaged", "45.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, input("2025-07-15", "Bread", "2.00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, input("2024-06-10", "Old", "2.00")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.ListByMonth(ctx, core.MonthQuery{Year: 2025, Month: 6})
	if err != nil {
		t.Fatalf("list june: %v", err)
	}
	if len(got) != 1 || got[0].ID != june.ID {
		t.Fatalf("june should contain only %d, got %+v", june.ID, got)
	}

	july, err := s.ListByMonth(ctx, core.MonthQuery{Year: 2025, Month: 7})
	if err != nil {
		t.Fatalf("list july: %v", err)
	}
	for _, c := range july {
		if c.ID == june.ID {
			t.Fatalf("july must exclude the june credit")
		}
	}
	if len(july) != 1 {
		t.Fatalf("july should contain one credit, got %d", len(july))
	}

	// Subset property against List.
	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	q := core.MonthQuery{Year: 2025, Month: 6}
	var expected []int64
	for _, c := range all {
		if q.Contains(c) {
			expected = append(expected, c.ID)
		}
	}
	if len(expected) != len(got) {
		t.Fatalf("month query disagrees with list filter: %v vs %d results", expected, len(got))
	}

	// created_at partitioning ignores the stored date.
	now, err := s.Get(ctx, june.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	byInsert := core.MonthQuery{
		Year:  now.CreatedAt.UTC().Year(),
		Month: int(now.CreatedAt.UTC().Month()),
		Key:   core.MonthByCreatedAt,
	}
	inserted, err := s.ListByMonth(ctx, byInsert)
	if err != nil {
		t.Fatalf("list by created_at: %v", err)
	}
	if len(inserted) != 3 {
		t.Fatalf("all credits were inserted this month, got %d", len(inserted))
	}
}

func testListByMonthInvalid(t *testing.T, s ledger.Store) {
	for _, m := range []int{0, 13} {
		_, err := s.ListByMonth(context.Background(), core.MonthQuery{Year: 2025, Month: m})
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Fatalf("month %d: expected ErrInvalidArgument, got %v", m, err)
		}
	}
}

func testConcurrentCreate(t *testing.T, s ledger.Store) {
	const n = 20
	ctx := context.Background()
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.Create(ctx, input("2025-06-01", "Concurrent", "1.00"))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- c.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
	}
}

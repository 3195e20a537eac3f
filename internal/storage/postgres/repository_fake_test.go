package postgres

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"creditledger/internal/core"
)

// fakeDB records the last statement and answers QueryRow with a canned row.
type fakeDB struct {
	sql  string
	args []any
	row  fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return f.row
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func creditRow(amount string) fakeRow {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return fakeRow{values: []any{int64(7), "2025-06-01", "TV", amount, created}}
}

func strPtr(s string) *string { return &s }

func TestRepositoryCreateAtAmountBound(t *testing.T) {
	fake := &fakeDB{row: creditRow("9999999999.99")}
	repo := &Repository{pool: fake}

	c, err := repo.Create(context.Background(), core.CreditInput{
		Date: "2025-06-01", Description: "TV", Amount: core.Money{Cents: core.MaxCents},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := fake.args[2]; got != "9999999999.99" {
		t.Errorf("amount argument = %v", got)
	}
	if c.ID != 7 || c.Amount.Cents != core.MaxCents {
		t.Errorf("credit = %+v", c)
	}
}

func TestRepositoryUpdateSendsOnlyPatchedColumns(t *testing.T) {
	tests := []struct {
		name  string
		patch core.CreditPatch
		date  *string
		desc  *string
		amt   *string
	}{
		{
			name:  "description only",
			patch: core.CreditPatch{Description: strPtr("Radio")},
			desc:  strPtr("Radio"),
		},
		{
			name:  "amount at bound",
			patch: core.CreditPatch{Amount: &core.Money{Cents: core.MaxCents}},
			amt:   strPtr("9999999999.99"),
		},
		{
			name:  "date and amount",
			patch: core.CreditPatch{Date: strPtr("2025-07-01"), Amount: &core.Money{Cents: 5}},
			date:  strPtr("2025-07-01"),
			amt:   strPtr("0.05"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDB{row: creditRow("45.00")}
			repo := &Repository{pool: fake}
			if _, err := repo.Update(context.Background(), 7, tt.patch); err != nil {
				t.Fatalf("update: %v", err)
			}
			if !strings.Contains(fake.sql, "COALESCE($4::text::numeric, amount)") {
				t.Errorf("update statement lost the partial amount clause:\n%s", fake.sql)
			}
			want := []any{int64(7), tt.date, tt.desc, tt.amt}
			if !reflect.DeepEqual(fake.args, want) {
				t.Errorf("args = %#v, want %#v", fake.args, want)
			}
		})
	}
}

func TestRepositoryErrors(t *testing.T) {
	t.Run("missing credit", func(t *testing.T) {
		repo := &Repository{pool: &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}}
		if _, err := repo.Get(context.Background(), 1); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("get err = %v", err)
		}
		if _, err := repo.Update(context.Background(), 1, core.CreditPatch{}); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("update err = %v", err)
		}
	})
	t.Run("amount outside range", func(t *testing.T) {
		repo := &Repository{pool: &fakeDB{row: creditRow("10000000000.00")}}
		if _, err := repo.Get(context.Background(), 7); err == nil {
			t.Fatal("expected an error for an amount past the column bound")
		}
	})
	t.Run("server error", func(t *testing.T) {
		overflow := &pgconn.PgError{Code: "22003", Message: "numeric field overflow"}
		repo := &Repository{pool: &fakeDB{row: fakeRow{err: overflow}}}
		_, err := repo.Create(context.Background(), core.CreditInput{Date: "2025-06-01", Description: "TV", Amount: core.Money{Cents: 1}})
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "22003" {
			t.Fatalf("create err = %v", err)
		}
	})
}

func TestRepositoryDelete(t *testing.T) {
	fake := &fakeDB{}
	repo := &Repository{pool: fake}
	ok, err := repo.Delete(context.Background(), 7)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(fake.args, []any{int64(7)}) {
		t.Errorf("args = %#v", fake.args)
	}
}

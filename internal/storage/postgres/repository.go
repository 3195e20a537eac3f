package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"creditledger/internal/core"
	"creditledger/internal/ledger"
)

var _ ledger.Store = (*Repository)(nil)

// Repository stores credits in PostgreSQL. Amounts live in a NUMERIC(12,2)
// column and cross the wire as text so no float is ever involved.
type Repository struct {
	pool db
}

// db is the part of *pgxpool.Pool the repository uses.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Open connects, migrates and returns a ready repository.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

const selectCredits = `SELECT id, date, description, amount::text, created_at FROM credits`

func (r *Repository) List(ctx context.Context) ([]core.Credit, error) {
	rows, err := r.pool.Query(ctx, selectCredits+` ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return collectCredits(rows)
}

func (r *Repository) ListByMonth(ctx context.Context, q core.MonthQuery) ([]core.Credit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		rows pgx.Rows
		err  error
	)
	switch q.PartitionKey() {
	case core.MonthByCreatedAt:
		rows, err = r.pool.Query(ctx,
			selectCredits+` WHERE to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') = $1 ORDER BY date DESC, id DESC`,
			q.Prefix())
	default:
		rows, err = r.pool.Query(ctx,
			selectCredits+` WHERE date LIKE $1 ORDER BY date DESC, id DESC`,
			q.Prefix()+"-%")
	}
	if err != nil {
		return nil, fmt.Errorf("list credits for %s: %w", q.Prefix(), err)
	}
	return collectCredits(rows)
}

func (r *Repository) Get(ctx context.Context, id int64) (core.Credit, error) {
	c, err := scanCredit(r.pool.QueryRow(ctx, selectCredits+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("get credit %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Credit{}, fmt.Errorf("get credit %d: %w", id, err)
	}
	return c, nil
}

func (r *Repository) Create(ctx context.Context, in core.CreditInput) (core.Credit, error) {
	c, err := scanCredit(r.pool.QueryRow(ctx, `
		INSERT INTO credits (date, description, amount)
		VALUES ($1, $2, $3::text::numeric)
		RETURNING id, date, description, amount::text, created_at`,
		in.Date, in.Description, numericText(in.Amount)))
	if err != nil {
		return core.Credit{}, fmt.Errorf("insert credit: %w", err)
	}

	slog.InfoContext(ctx, "Credit saved to PostgreSQL",
		"id", c.ID,
		"date", c.Date,
		"amount_cents", c.Amount.Cents)
	return c, nil
}

// Update rewrites only the supplied columns; COALESCE keeps the rest.
func (r *Repository) Update(ctx context.Context, id int64, p core.CreditPatch) (core.Credit, error) {
	var amount *string
	if p.Amount != nil {
		s := numericText(*p.Amount)
		amount = &s
	}
	c, err := scanCredit(r.pool.QueryRow(ctx, `
		UPDATE credits SET
			date = COALESCE($2, date),
			description = COALESCE($3, description),
			amount = COALESCE($4::text::numeric, amount)
		WHERE id = $1
		RETURNING id, date, description, amount::text, created_at`,
		id, p.Date, p.Description, amount))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("update credit %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Credit{}, fmt.Errorf("update credit %d: %w", id, err)
	}
	return c, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM credits WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete credit %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanCredit(row pgx.Row) (core.Credit, error) {
	var (
		c      core.Credit
		amount string
	)
	if err := row.Scan(&c.ID, &c.Date, &c.Description, &amount, &c.CreatedAt); err != nil {
		return core.Credit{}, err
	}
	m, err := moneyFromNumeric(amount)
	if err != nil {
		return core.Credit{}, fmt.Errorf("stored amount: %w", err)
	}
	c.Amount = m
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func collectCredits(rows pgx.Rows) ([]core.Credit, error) {
	defer rows.Close()
	out := make([]core.Credit, 0)
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return out, nil
}

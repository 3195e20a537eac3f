package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"creditledger/internal/core"
	"creditledger/internal/ledger"

	_ "modernc.org/sqlite"
)

// createdAtLayout sorts lexically, so substr(created_at, 1, 7) is the UTC month.
const createdAtLayout = "2006-01-02T15:04:05.000000Z"

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serializing on one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn(dbPath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectCredits = `SELECT id, date, description, amount_cents, created_at FROM credits`

func (r *SQLiteRepository) List(ctx context.Context) ([]core.Credit, error) {
	rows, err := r.db.QueryContext(ctx, selectCredits+` ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return scanCredits(rows)
}

func (r *SQLiteRepository) ListByMonth(ctx context.Context, q core.MonthQuery) ([]core.Credit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	switch q.PartitionKey() {
	case core.MonthByCreatedAt:
		rows, err = r.db.QueryContext(ctx,
			selectCredits+` WHERE substr(created_at, 1, 7) = ? ORDER BY date DESC, id DESC`, q.Prefix())
	default:
		rows, err = r.db.QueryContext(ctx,
			selectCredits+` WHERE date LIKE ? ORDER BY date DESC, id DESC`, q.Prefix()+"-%")
	}
	if err != nil {
		return nil, fmt.Errorf("list credits for %s: %w", q.Prefix(), err)
	}
	return scanCredits(rows)
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Credit, error) {
	row := r.db.QueryRowContext(ctx, selectCredits+` WHERE id = ?`, id)
	c, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("get credit %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Credit{}, fmt.Errorf("get credit %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, in core.CreditInput) (core.Credit, error) {
	createdAt := r.now().UTC().Truncate(time.Microsecond)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO credits (date, description, amount_cents, created_at) VALUES (?, ?, ?, ?)`,
		in.Date, in.Description, in.Amount.Cents, createdAt.Format(createdAtLayout))
	if err != nil {
		return core.Credit{}, fmt.Errorf("insert credit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Credit{}, fmt.Errorf("read credit id: %w", err)
	}

	slog.InfoContext(ctx, "Credit saved to SQLite",
		"id", id,
		"date", in.Date,
		"amount_cents", in.Amount.Cents)

	return core.Credit{
		ID:          id,
		Date:        in.Date,
		Description: in.Description,
		Amount:      in.Amount,
		CreatedAt:   createdAt,
	}, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, p core.CreditPatch) (core.Credit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Credit{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	current, err := scanCredit(tx.QueryRowContext(ctx, selectCredits+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("update credit %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Credit{}, fmt.Errorf("load credit %d: %w", id, err)
	}

	updated := p.Apply(current)
	if _, err := tx.ExecContext(ctx,
		`UPDATE credits SET date = ?, description = ?, amount_cents = ? WHERE id = ?`,
		updated.Date, updated.Description, updated.Amount.Cents, id); err != nil {
		return core.Credit{}, fmt.Errorf("update credit %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Credit{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credits WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete credit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete credit %d: %w", id, err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Credit deleted from SQLite", "id", id)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredit(row rowScanner) (core.Credit, error) {
	var (
		c         core.Credit
		cents     int64
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Date, &c.Description, &cents, &createdAt); err != nil {
		return core.Credit{}, err
	}
	c.Amount = core.Money{Cents: cents}
	t, err := time.Parse(createdAtLayout, strings.TrimSpace(createdAt))
	if err != nil {
		return core.Credit{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	c.CreatedAt = t
	return c, nil
}

func scanCredits(rows *sql.Rows) ([]core.Credit, error) {
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

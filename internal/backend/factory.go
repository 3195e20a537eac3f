package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"creditledger/internal/ledger"
	"creditledger/internal/ledger/memory"
	"creditledger/internal/sessions"
	sessredis "creditledger/internal/sessions/redis"
	"creditledger/internal/storage"
	"creditledger/internal/storage/postgres"
)

const defaultSeedDir = "data"

// Result is an opened backend. Close releases every resource it holds.
type Result struct {
	Store    ledger.Store
	Sessions sessions.Store
	Close    func() error
}

type opener func(ctx context.Context, cfg Config) (*Result, error)

// Factory opens backends and logs what it opened.
type Factory struct {
	logger  *slog.Logger
	openers map[Kind]opener
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{logger: logger.With("component", "backend")}
	f.openers = map[Kind]opener{
		Memory:   f.openMemory,
		SQLite:   f.openSQLite,
		Postgres: f.openPostgres,
	}
	return f
}

// Open builds the ledger store for cfg.Kind, then swaps in redis sessions
// when configured. A failure after the store opened closes it again.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	open, ok := f.openers[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("backend: no opener for %q", cfg.Kind)
	}
	res, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", cfg.Kind, err)
	}
	if !cfg.RedisSessions() {
		return res, nil
	}

	store, err := sessredis.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("backend: redis sessions: %w", err), res.Close())
	}
	closeLedger := res.Close
	res.Sessions = store
	res.Close = func() error { return errors.Join(store.Close(), closeLedger()) }
	f.logger.Info("Sessions stored in redis")
	return res, nil
}

func (f *Factory) openMemory(_ context.Context, cfg Config) (*Result, error) {
	dir := cfg.SeedDir
	if dir == "" {
		dir = defaultSeedDir
	}
	store := memory.NewFromFiles(dir)
	f.logger.Info("Opened memory ledger", "seed_dir", dir)
	return &Result{Store: store, Sessions: sessions.NewMemoryStore(), Close: store.Close}, nil
}

func (f *Factory) openSQLite(_ context.Context, cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Opened SQLite ledger", "db_path", cfg.SQLitePath)
	return &Result{Store: repo, Sessions: repo.Sessions(), Close: repo.Close}, nil
}

func (f *Factory) openPostgres(ctx context.Context, cfg Config) (*Result, error) {
	repo, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Opened postgres ledger")
	return &Result{Store: repo, Sessions: repo.Sessions(), Close: repo.Close}, nil
}

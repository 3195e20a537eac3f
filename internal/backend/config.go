// Package backend opens the ledger store and session store chosen by
// configuration and hands back one function that releases them both.
package backend

import (
	"errors"
	"fmt"

	"creditledger/internal/config"
)

// Kind names a ledger store implementation.
type Kind string

const (
	Memory   Kind = "memory"
	SQLite   Kind = "sqlite"
	Postgres Kind = "postgres"
)

// Kinds lists every supported store in documentation order.
func Kinds() []Kind {
	return []Kind{Memory, SQLite, Postgres}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Config is the slice of application config the factory needs.
type Config struct {
	Kind Kind

	SQLitePath  string
	DatabaseURL string
	// SeedDir holds optional JSON seed files for the memory store.
	SeedDir string

	// RedisURL, when set, moves sessions out of the ledger store.
	RedisURL string
}

// FromAppConfig picks out the store settings. Token auth keeps no sessions
// server-side, so its redis settings are ignored.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	cfg := Config{
		Kind:        Kind(app.DataBackend),
		SQLitePath:  app.SQLiteDBPath,
		DatabaseURL: app.DatabaseURL,
		SeedDir:     app.DataDir,
	}
	if app.AuthMode == config.AuthModeSession && app.SessionBackend == config.SessionBackendRedis {
		cfg.RedisURL = app.RedisURL
		if cfg.RedisURL == "" {
			return Config{}, errors.New("backend: SESSION_BACKEND=redis needs REDIS_URL")
		}
	}
	return cfg, cfg.Validate()
}

// RedisSessions reports whether sessions live in redis.
func (c Config) RedisSessions() bool {
	return c.RedisURL != ""
}

// Validate reports every missing setting for the chosen kind at once.
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("backend: unknown kind %q, want one of %v", c.Kind, Kinds())
	}
	var errs []error
	if c.Kind == SQLite && c.SQLitePath == "" {
		errs = append(errs, errors.New("backend: sqlite needs SQLITE_DB_PATH"))
	}
	if c.Kind == Postgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("backend: postgres needs DATABASE_URL"))
	}
	return errors.Join(errs...)
}

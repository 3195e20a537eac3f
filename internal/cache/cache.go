// Package cache holds the in-process caches and the janitor that sweeps them.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is a keyed store whose writers can detect a concurrent invalidation:
// a value computed before Invalidate ran is dropped by SetIfCurrent.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Generation() uint64
	SetIfCurrent(key string, value T, gen uint64) bool
	Invalidate(keys ...string)
	Purge()
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Cleaner is anything with expiring entries: LRU caches, session tables.
type Cleaner interface {
	CleanExpired() int
}

// CleanerFunc adapts a plain function to Cleaner.
type CleanerFunc func() int

func (f CleanerFunc) CleanExpired() int { return f() }

// Manager periodically sweeps every registered Cleaner.
type Manager struct {
	mu          sync.Mutex
	caches      map[string]Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		caches:      make(map[string]Cleaner),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      logger,
	}
}

// Register adds a named cleaner. Registering after StartCleanup is allowed.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	m.caches[name] = c
	m.mu.Unlock()
}

func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

// Sweep runs one cleaning pass and returns how many entries each cleaner dropped.
func (m *Manager) Sweep() map[string]int {
	m.mu.Lock()
	cleaners := make(map[string]Cleaner, len(m.caches))
	for name, c := range m.caches {
		cleaners[name] = c
	}
	m.mu.Unlock()

	out := make(map[string]int, len(cleaners))
	for name, c := range cleaners {
		out[name] = c.CleanExpired()
	}
	return out
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for name, n := range m.Sweep() {
				m.logSweep(name, n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// statser is implemented by caches that count their traffic.
type statser interface {
	Stats() Stats
}

func (m *Manager) logSweep(name string, removed int) {
	m.mu.Lock()
	c := m.caches[name]
	m.mu.Unlock()

	args := []any{"cache", name, "expired", removed}
	if st, ok := c.(statser); ok {
		s := st.Stats()
		args = append(args, "size", s.Size, "hits", s.Hits, "misses", s.Misses, "evictions", s.Evictions)
	} else if removed == 0 {
		return
	}
	m.logger.Debug("Cache swept", args...)
}

// Stop halts the cleanup goroutine. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}

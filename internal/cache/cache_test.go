package cache

import (
	"bytes"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	// "b" is now least recently used and goes first.
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", 42)
	now = now.Add(30 * time.Second)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("entry expired too early: %v %v", v, ok)
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}

	c.Set("x", 1)
	c.Set("y", 2)
	now = now.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", n)
	}
}

func TestLRUCacheInvalidateAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be deleted")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("Size() after purge = %d", c.Size())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatal("cache unusable after purge")
	}
}

func TestLRUCacheGenerationGuard(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	gen := c.Generation()
	c.Invalidate("unrelated")
	if c.SetIfCurrent("k", 1, gen) {
		t.Fatal("stale value stored after invalidation")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("stale value visible")
	}

	gen = c.Generation()
	if !c.SetIfCurrent("k", 2, gen) {
		t.Fatal("current value rejected")
	}
	c.Purge()
	if c.Generation() == gen {
		t.Fatal("purge must bump the generation")
	}
}

func TestLRUCacheStats(t *testing.T) {
	c := NewLRUCache[int](1, time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Set("b", 2)

	got := c.Stats()
	want := Stats{Hits: 1, Misses: 1, Evictions: 1, Size: 1}
	if got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(nil)
	var calls atomic.Int32
	m.Register("sessions", CleanerFunc(func() int {
		calls.Add(1)
		return 3
	}))
	got := m.Sweep()
	if got["sessions"] != 3 || calls.Load() != 1 {
		t.Fatalf("unexpected sweep result %v (calls %d)", got, calls.Load())
	}
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil)
	var calls atomic.Int32
	m.Register("counter", CleanerFunc(func() int {
		calls.Add(1)
		return 0
	}))
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()
	if calls.Load() == 0 {
		t.Fatal("cleaner never ran")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}

func TestManagerLogsCacheStats(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lru := NewLRUCache[int](4, time.Minute)
	lru.Set("2025-06:date", 1)
	lru.Get("2025-06:date")
	m.Register("month_summaries", lru)
	m.Register("sessions", CleanerFunc(func() int { return 0 }))

	for name, n := range m.Sweep() {
		m.logSweep(name, n)
	}
	out := buf.String()
	if !strings.Contains(out, "cache=month_summaries") || !strings.Contains(out, "hits=1") {
		t.Errorf("missing stats line: %s", out)
	}
	if strings.Contains(out, "cache=sessions") {
		t.Errorf("idle cleaner without stats should stay quiet: %s", out)
	}
}

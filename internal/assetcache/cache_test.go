package assetcache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T, dir string, maxEntries int, maxBytes int64) *Cache {
	t.Helper()
	cache, err := New(Config{Dir: dir, MaxEntries: maxEntries, MaxBytes: maxBytes})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache
}

func TestPutGetRoundTrip(t *testing.T) {
	cache := newTestCache(t, t.TempDir(), 16, 1<<20)
	payload := []byte("decoded thumbnail bytes")

	cache.Put("abc123", payload)
	got, ok := cache.Get("abc123")
	if !ok {
		t.Fatalf("memory tier miss after put")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload corrupted: %q", got)
	}
}

func TestDiskTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("survives process restart")

	first := newTestCache(t, dir, 16, 1<<20)
	first.Put("abc123", payload)
	first.Flush()

	// A fresh instance simulates a process restart: memory is cold, the
	// disk mirror serves the asset and promotes it.
	second := newTestCache(t, dir, 16, 1<<20)
	got, ok := second.Get("abc123")
	if !ok {
		t.Fatalf("disk tier miss after restart")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload corrupted after restart: %q", got)
	}

	// Promotion happened: removing the file must not break the next read.
	if err := os.Remove(filepath.Join(dir, "abc123")); err != nil {
		t.Fatalf("failed to remove mirror file: %v", err)
	}
	if _, ok := second.Get("abc123"); !ok {
		t.Fatalf("promoted entry lost from memory tier")
	}
}

func TestEvictionByEntryCount(t *testing.T) {
	cache := newTestCache(t, t.TempDir(), 3, 1<<20)
	for i := 0; i < 5; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), []byte("payload"))
	}
	cache.Flush()

	cache.mu.RLock()
	entries := cache.order.Len()
	cache.mu.RUnlock()
	if entries != 3 {
		t.Fatalf("memory tier holds %d entries, want 3", entries)
	}
}

func TestEvictionByByteCost(t *testing.T) {
	cache := newTestCache(t, t.TempDir(), 100, 100)
	large := make([]byte, 60)

	cache.Put("first", large)
	cache.Put("second", large)
	cache.Flush()

	cache.mu.RLock()
	total := cache.totalCost
	cache.mu.RUnlock()
	if total > 100 {
		t.Fatalf("byte budget exceeded: %d", total)
	}

	// The older entry was evicted from memory but still lives on disk.
	if _, ok := cache.Get("first"); !ok {
		t.Fatalf("evicted entry not recoverable from disk")
	}
}

func TestClearWipesBothTiers(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache(t, dir, 16, 1<<20)
	cache.Put("abc123", []byte("payload"))
	cache.Flush()

	if err := cache.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := cache.Get("abc123"); ok {
		t.Fatalf("entry survived clear")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read cache dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("disk tier not emptied: %d files", len(entries))
	}
}

func TestNoPartialFilesObservable(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache(t, dir, 16, 1<<20)
	cache.Put("abc123", bytes.Repeat([]byte{0xAB}, 4096))
	cache.Flush()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read cache dir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "abc123" {
			t.Fatalf("stray file in cache dir: %s", entry.Name())
		}
		info, err := entry.Info()
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Size() != 4096 {
			t.Fatalf("truncated asset on disk: %d bytes", info.Size())
		}
	}
}

func TestTraversalKeysRejected(t *testing.T) {
	cache := newTestCache(t, t.TempDir(), 16, 1<<20)
	cache.Put("../escape", []byte("payload"))
	cache.Flush()
	if _, ok := cache.Get("../escape"); ok {
		t.Fatalf("traversal key accepted")
	}
}

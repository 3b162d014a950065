// Package assetcache caches derived rendering assets (thumbnails, rendered
// rich text, sampled colors) in a memory LRU tier mirrored by a
// content-addressed disk tier. Entries are pure functions of their key, so
// the whole cache can be cleared at any time at a performance cost only.
package assetcache

import (
	"container/list"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	defaultMaxEntries = 256
	defaultMaxBytes   = 64 << 20
)

var errMissingDir = errors.New("cache directory is required")

type memoryEntry struct {
	key     string
	payload []byte
}

type Config struct {
	Dir        string
	MaxEntries int
	MaxBytes   int64
	Logger     *zap.Logger
}

// Cache is safe for concurrent use. Reads hit the memory tier first; disk
// hits are promoted back into memory. Disk writes happen off the caller's
// path and are atomic, so a partially written asset is never observable.
type Cache struct {
	dir        string
	maxEntries int
	maxBytes   int64
	logger     *zap.Logger

	mu        sync.RWMutex
	order     *list.List
	elements  map[string]*list.Element
	totalCost int64

	writes sync.WaitGroup
}

func New(cfg Config) (*Cache, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errMissingDir
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		dir:        cfg.Dir,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		logger:     logger,
		order:      list.New(),
		elements:   make(map[string]*list.Element),
	}, nil
}

// Get returns the cached asset for the key, consulting memory first and
// falling back to the disk mirror. Disk hits are promoted into memory.
func (c *Cache) Get(key string) ([]byte, bool) {
	if !validKey(key) {
		return nil, false
	}

	c.mu.Lock()
	if element, ok := c.elements[key]; ok {
		c.order.MoveToFront(element)
		payload := element.Value.(*memoryEntry).payload
		c.mu.Unlock()
		return payload, true
	}
	c.mu.Unlock()

	payload, err := os.ReadFile(filepath.Join(c.dir, key))
	if err != nil {
		return nil, false
	}
	c.storeInMemory(key, payload)
	return payload, true
}

// Put stores the asset in memory immediately and mirrors it to disk
// asynchronously.
func (c *Cache) Put(key string, payload []byte) {
	if !validKey(key) || len(payload) == 0 {
		return
	}
	c.storeInMemory(key, payload)

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		if err := c.writeAtomic(key, payload); err != nil {
			// Cache only: a failed disk write costs a later recompute.
			c.logger.Warn("asset cache disk write failed",
				zap.String("key", key), zap.Error(err))
		}
	}()
}

// Delete drops the key from both tiers.
func (c *Cache) Delete(key string) {
	if !validKey(key) {
		return
	}
	c.mu.Lock()
	if element, ok := c.elements[key]; ok {
		c.removeElement(element)
	}
	c.mu.Unlock()
	_ = os.Remove(filepath.Join(c.dir, key))
}

// Clear wipes both tiers wholesale. Safe at any time; entries are derived
// state only.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.order.Init()
	c.elements = make(map[string]*list.Element)
	c.totalCost = 0
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Flush blocks until all pending disk writes have settled.
func (c *Cache) Flush() {
	c.writes.Wait()
}

func (c *Cache) storeInMemory(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.elements[key]; ok {
		entry := element.Value.(*memoryEntry)
		c.totalCost += int64(len(payload)) - int64(len(entry.payload))
		entry.payload = payload
		c.order.MoveToFront(element)
	} else {
		element := c.order.PushFront(&memoryEntry{key: key, payload: payload})
		c.elements[key] = element
		c.totalCost += int64(len(payload))
	}

	for c.order.Len() > c.maxEntries || c.totalCost > c.maxBytes {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

func (c *Cache) removeElement(element *list.Element) {
	entry := element.Value.(*memoryEntry)
	c.order.Remove(element)
	delete(c.elements, entry.key)
	c.totalCost -= int64(len(entry.payload))
}

// writeAtomic writes to a temp file and renames it into place so a reader
// can never observe a truncated asset.
func (c *Cache) writeAtomic(key string, payload []byte) error {
	tmp, err := os.CreateTemp(c.dir, key+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(c.dir, key))
}

// validKey rejects anything that could escape the cache directory. Keys
// are content hashes, one flat file per asset.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	return !strings.ContainsAny(key, "/\\") && key != "." && key != ".."
}

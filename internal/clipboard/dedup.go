package clipboard

import (
	"sync"
	"time"
)

const (
	defaultDedupWindow   = 2 * time.Second
	defaultDedupCapacity = 20
)

type dedupRecord struct {
	hash   string
	seenAt time.Time
}

// DedupWindow is a bounded ring of recently captured content hashes. It
// absorbs bursts where one user action writes identical content several
// times within the window; long-term duplicates are handled by the
// persistent hash index instead.
type DedupWindow struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	clock    func() time.Time
	ring     []dedupRecord
}

type DedupConfig struct {
	Window   time.Duration
	Capacity int
	Clock    func() time.Time
}

func NewDedupWindow(cfg DedupConfig) *DedupWindow {
	window := cfg.Window
	if window <= 0 {
		window = defaultDedupWindow
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultDedupCapacity
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DedupWindow{window: window, capacity: capacity, clock: clock}
}

// IsRecentDuplicate reports whether the hash was seen inside the window.
// It never mutates the ring.
func (d *DedupWindow) IsRecentDuplicate(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := d.clock().Add(-d.window)
	for _, record := range d.ring {
		if record.hash == hash && record.seenAt.After(cutoff) {
			return true
		}
	}
	return false
}

// RecordSeen appends the hash, evicts entries older than the window, and
// separately caps the ring at its capacity so memory stays bounded even
// under a burst of distinct captures.
func (d *DedupWindow) RecordSeen(hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	d.ring = append(d.ring, dedupRecord{hash: hash, seenAt: now})

	cutoff := now.Add(-d.window)
	kept := d.ring[:0]
	for _, record := range d.ring {
		if record.seenAt.After(cutoff) {
			kept = append(kept, record)
		}
	}
	d.ring = kept

	if len(d.ring) > d.capacity {
		d.ring = d.ring[len(d.ring)-d.capacity:]
	}
}

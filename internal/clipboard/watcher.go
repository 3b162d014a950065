package clipboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultSelfWriteGrace = 300 * time.Millisecond
)

var (
	errMissingPasteboard = errors.New("pasteboard is required")
	errMissingSink       = errors.New("persistence sink is required")
	noOpLogger           = zap.NewNop()
)

const (
	opWatcherNew  = "clipboard.watcher.new"
	opWatcherTick = "clipboard.watcher.tick"
)

// WatcherError carries an operation.reason code alongside the cause.
type WatcherError struct {
	code string
	err  error
}

func (e *WatcherError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *WatcherError) Unwrap() error { return e.err }

func (e *WatcherError) Code() string { return e.code }

func newWatcherError(operation, reason string, cause error) error {
	return &WatcherError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Sink is the durable store the watcher feeds. FindIDByHash returns an
// empty identifier when the hash is unknown.
type Sink interface {
	Insert(ctx context.Context, capture Captured) (string, error)
	FindIDByHash(ctx context.Context, hash string) (string, error)
	BumpTimestamp(ctx context.Context, itemID string) error
}

// Enricher schedules best-effort background decoration of a persisted item.
// Implementations must never block the capture path.
type Enricher interface {
	EnrichLink(itemID, linkURL string)
	EnrichImage(itemID string, pngBytes []byte)
}

type WatcherConfig struct {
	Pasteboard       Pasteboard
	Sink             Sink
	Extractor        *Extractor
	Dedup            *DedupWindow
	Enricher         Enricher
	ExcludedAppIDs   []string
	PollInterval     time.Duration
	SelfWriteGrace   time.Duration
	Clock            func() time.Time
	Logger           *zap.Logger
	// OnPersistFailure lets the host observe lost captures; the loop keeps
	// polling either way.
	OnPersistFailure func(error)
}

// Watcher owns the polling loop. It is the only component that decides
// whether a capture cycle runs: change detection, self-write suppression,
// and the privacy exclusion filter all happen here before any payload
// bytes are read.
type Watcher struct {
	pasteboard     Pasteboard
	sink           Sink
	extractor      *Extractor
	dedup          *DedupWindow
	enricher       Enricher
	excluded       map[string]struct{}
	pollInterval   time.Duration
	selfWriteGrace time.Duration
	clock          func() time.Time
	logger         *zap.Logger
	onPersistFail  func(error)

	mu            sync.Mutex
	running       bool
	stop          chan struct{}
	done          chan struct{}
	lastToken     uint64
	tokenPrimed   bool
	selfWriteAt   time.Time
	expectedToken uint64
	selfWriteSet  bool
}

func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Pasteboard == nil {
		return nil, newWatcherError(opWatcherNew, "missing_pasteboard", errMissingPasteboard)
	}
	if cfg.Sink == nil {
		return nil, newWatcherError(opWatcherNew, "missing_sink", errMissingSink)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = NewExtractor(logger)
	}
	dedup := cfg.Dedup
	if dedup == nil {
		dedup = NewDedupWindow(DedupConfig{Clock: cfg.Clock})
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	selfWriteGrace := cfg.SelfWriteGrace
	if selfWriteGrace <= 0 {
		selfWriteGrace = defaultSelfWriteGrace
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedAppIDs))
	for _, appID := range cfg.ExcludedAppIDs {
		if appID != "" {
			excluded[appID] = struct{}{}
		}
	}

	return &Watcher{
		pasteboard:     cfg.Pasteboard,
		sink:           cfg.Sink,
		extractor:      extractor,
		dedup:          dedup,
		enricher:       cfg.Enricher,
		excluded:       excluded,
		pollInterval:   pollInterval,
		selfWriteGrace: selfWriteGrace,
		clock:          clock,
		logger:         logger,
		onPersistFail:  cfg.OnPersistFailure,
	}, nil
}

// Start begins polling. Calling it while the loop is already running is a
// no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	stop := w.stop
	done := w.done
	w.mu.Unlock()

	go w.loop(stop, done)
	w.logger.Info("clipboard watcher started", zap.Duration("interval", w.pollInterval))
}

// Stop halts polling and waits for the in-flight tick, if any, to finish.
// Calling it on a stopped watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("clipboard watcher stopped")
}

// RecordSelfWrite marks a deliberate clipboard write by this process so the
// next poll can absorb it instead of re-capturing our own content. If an
// external actor writes in the interim the observed token will differ from
// the expected one and the poll is NOT suppressed.
func (w *Watcher) RecordSelfWrite(expectedToken uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expectedToken = expectedToken
	w.selfWriteAt = w.clock()
	w.selfWriteSet = true
}

func (w *Watcher) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Ticks run sequentially on this goroutine; no tick ever
			// overlaps another.
			w.Tick(context.Background())
		}
	}
}

// Tick runs one full capture cycle. A failed tick logs and returns; the
// loop itself never stops on failure.
func (w *Watcher) Tick(ctx context.Context) {
	token, err := w.pasteboard.ChangeToken()
	if err != nil {
		w.logger.Warn("clipboard change token read failed",
			zap.String("operation", opWatcherTick), zap.Error(err))
		return
	}

	w.mu.Lock()
	if w.tokenPrimed && token == w.lastToken {
		w.mu.Unlock()
		return
	}
	if w.absorbSelfWriteLocked(token) {
		w.mu.Unlock()
		return
	}
	w.lastToken = token
	w.tokenPrimed = true
	w.mu.Unlock()

	source, err := w.pasteboard.FrontmostApp()
	if err != nil {
		w.logger.Warn("frontmost app lookup failed",
			zap.String("operation", opWatcherTick), zap.Error(err))
		source = AppInfo{}
	}
	// Privacy filter: runs before any payload bytes are read.
	if _, skip := w.excluded[source.BundleID]; skip {
		w.logger.Debug("capture skipped for excluded app",
			zap.String("bundle_id", source.BundleID))
		return
	}

	reps, err := w.pasteboard.Read()
	if err != nil {
		w.logger.Warn("clipboard read failed",
			zap.String("operation", opWatcherTick), zap.Error(err))
		return
	}

	snapshot := Snapshot{Token: token, Reps: reps, ObservedAt: w.clock()}
	captured, err := w.extractor.Extract(snapshot, source)
	if err != nil {
		if !errors.Is(err, ErrNothingToCapture) {
			w.logger.Warn("extraction failed",
				zap.String("operation", opWatcherTick), zap.Error(err))
		}
		return
	}

	w.persist(ctx, captured)
}

// absorbSelfWriteLocked resynchronizes the observed token when the change
// is our own write still inside the grace window. Returns true when the
// change was absorbed and extraction must be skipped.
func (w *Watcher) absorbSelfWriteLocked(token uint64) bool {
	if !w.selfWriteSet {
		return false
	}
	withinGrace := w.clock().Sub(w.selfWriteAt) <= w.selfWriteGrace
	if !withinGrace {
		w.selfWriteSet = false
		return false
	}
	if token != w.expectedToken {
		// Someone else wrote after us; capture it normally.
		w.selfWriteSet = false
		return false
	}
	w.selfWriteSet = false
	w.lastToken = token
	w.tokenPrimed = true
	return true
}

func (w *Watcher) persist(ctx context.Context, captured Captured) {
	if w.dedup.IsRecentDuplicate(captured.Hash) {
		w.logger.Debug("duplicate within dedup window",
			zap.String("hash", captured.Hash))
		return
	}

	existingID, err := w.sink.FindIDByHash(ctx, captured.Hash)
	if err != nil {
		w.reportPersistFailure("hash_lookup_failed", err)
		return
	}
	if existingID != "" {
		// Known content resurfaces at the top of history instead of
		// producing a second row.
		if err := w.sink.BumpTimestamp(ctx, existingID); err != nil {
			w.reportPersistFailure("timestamp_bump_failed", err)
			return
		}
		w.dedup.RecordSeen(captured.Hash)
		return
	}

	itemID, err := w.sink.Insert(ctx, captured)
	if err != nil {
		w.reportPersistFailure("insert_failed", err)
		return
	}
	// Insert before marking seen: an item is never in the ring while
	// absent from the store.
	w.dedup.RecordSeen(captured.Hash)

	if w.enricher != nil {
		switch captured.Type {
		case TypeLink:
			w.enricher.EnrichLink(itemID, captured.Text)
		case TypeImage:
			w.enricher.EnrichImage(itemID, captured.ImageBytes)
		}
	}
}

func (w *Watcher) reportPersistFailure(reason string, err error) {
	w.logger.Error("capture lost",
		zap.String("operation", opWatcherTick),
		zap.String("reason", reason),
		zap.Error(err))
	if w.onPersistFail != nil {
		w.onPersistFail(newWatcherError(opWatcherTick, reason, err))
	}
}

package gameinfo

import (
	"sync"
	"time"

	"github.com/gameshelf/gameshelf/internal/logger"
	"github.com/gameshelf/gameshelf/pkg/workqueue"
)

// Options configures a Cache.
type Options struct {
	// Workers is the number of background loader goroutines. Default: 1.
	// One worker matches the original design; more are safe because loader
	// tasks never share records.
	Workers int

	// Opener provides the format collaborators. Required.
	Opener Opener

	// Codec parses metadata blobs. Required.
	Codec MetadataCodec

	// Decoder turns raw artwork into renderable images.
	// Default: NewStdDecoder().
	Decoder Decoder

	// Comparator orders queued loader tasks.
	// Default: workqueue.MostRecentFirst with FIFO tie-break.
	Comparator workqueue.Comparator

	// Metrics is the optional metrics collector (nil for no metrics).
	Metrics Metrics
}

// Cache is the keyed store of lazily populated records.
//
// The cache owns the path->record map under a cache-wide mutex; record
// contents are shared with loader tasks and arbitrated by the per-record
// lock plus the supersede check. GetInfo may be called from any number of
// foreground goroutines.
//
// Lifecycle: New -> Init -> GetInfo/FlushBGs/Clear... -> Shutdown.
type Cache struct {
	mu      sync.Mutex
	records map[string]*Record

	queue   *workqueue.Queue
	opener  Opener
	codec   MetadataCodec
	decoder Decoder
	metrics Metrics
	workers int
}

// New creates a cache. Init must be called before the first GetInfo.
func New(opts Options) *Cache {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Decoder == nil {
		opts.Decoder = NewStdDecoder()
	}

	return &Cache{
		records: make(map[string]*Record),
		queue:   workqueue.New(opts.Comparator),
		opener:  opts.Opener,
		codec:   opts.Codec,
		decoder: opts.Decoder,
		metrics: opts.Metrics,
		workers: opts.Workers,
	}
}

// Init starts the background loader workers. Call once, before any GetInfo.
func (c *Cache) Init() {
	c.queue.Start(c.workers)
}

// Shutdown stops the loader workers after any in-flight task finishes.
// Queued tasks are dropped; their records simply stay empty.
func (c *Cache) Shutdown() {
	c.queue.Stop()
}

// GetInfo returns the record for path, creating it and scheduling its
// loader on first request.
//
// On a hit, any raw artwork bytes the loader has delivered are decoded
// synchronously before the record is returned; decode failures silently
// empty the affected slot. On a miss the returned record is empty until the
// background loader populates it - callers render placeholders meanwhile.
//
// Asking for background art on a record created without it discards that
// record and starts over with a fresh one under the same path; the
// superseded record's loader task no-ops from then on.
//
// The returned handle stays valid until Clear.
func (c *Cache) GetInfo(path string, wantBackground bool) *Record {
	c.mu.Lock()
	rec, ok := c.records[path]

	if ok && wantBackground && !rec.wantBackground {
		// Escalation: the loader captured wantBackground at creation, so
		// the record cannot be upgraded in place. Drop it from the map;
		// its task detects the supersede and stops writing.
		delete(c.records, path)
		ok = false

		if c.metrics != nil {
			c.metrics.ObserveEscalation()
		}
		logger.Debug("record superseded for background art", "path", path)
	}

	if !ok {
		rec = newRecord(path, wantBackground)
		rec.touch()
		c.records[path] = rec
		count := len(c.records)
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.ObserveLookup(false)
			c.metrics.RecordCount(count)
		}

		c.queue.Add(&workItem{cache: c, rec: rec})
		return rec
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ObserveLookup(true)
	}

	c.decodePending(rec)
	rec.touch()
	return rec
}

// decodePending moves every slot currently holding raw bytes to its decoded
// state. Best-effort and idempotent: failures drop the bytes without retry,
// and a record with nothing raw is a no-op.
//
// Each slot is one critical section, so the loader can keep delivering other
// fields in between.
func (c *Cache) decodePending(rec *Record) {
	for _, id := range []SlotID{SlotIcon, SlotBackground, SlotBackgroundSecondary} {
		rec.mu.Lock()
		s := rec.slot(id)
		if s.state() != SlotRawBytes {
			rec.mu.Unlock()
			continue
		}

		start := time.Now()
		art, err := c.decoder.Decode(s.raw)

		// Raw bytes are consumed either way; the slot never holds both.
		s.raw = nil
		outcome := "ok"
		if err != nil {
			outcome = "failed"
			rec.mu.Unlock()
			logger.Debug("artwork decode failed",
				"path", rec.path,
				"slot", id.String(),
				"error", err,
			)
		} else {
			s.art = art
			s.decodedAt = time.Now()
			rec.mu.Unlock()
		}

		if c.metrics != nil {
			c.metrics.ObserveDecode(id, outcome, time.Since(start))
		}
	}
}

// isCurrent reports whether rec is still the live record for its path.
// Loader tasks call this before every field write.
func (c *Cache) isCurrent(rec *Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[rec.path] == rec
}

// Drain blocks until every queued and in-flight loader task has finished.
// Records keep their contents; this only waits for the background work.
func (c *Cache) Drain() {
	c.queue.Drain()
}

// Clear waits for all outstanding loader tasks to finish (drain, not
// cancel), then releases every record and empties the map.
//
// Callers must not race Clear with GetInfo; the cache serializes map access
// but cannot stop a concurrent caller from re-populating as it drains.
func (c *Cache) Clear() {
	c.queue.Drain()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.records {
		rec.release()
	}
	c.records = make(map[string]*Record)

	if c.metrics != nil {
		c.metrics.RecordCount(0)
	}
	logger.Debug("game info cache cleared")
}

// FlushBGs releases the background artwork of every record - raw bytes and
// decoded images both - leaving icons, titles and metadata untouched. Used
// to reclaim memory for off-screen items.
func (c *Cache) FlushBGs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.records {
		rec.flushBackgrounds()
	}
}

// Len returns the number of live records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Save is an extension point for persisting cache contents across runs.
// It is a documented no-op: cache contents are not persisted.
func (c *Cache) Save() {}

// Load is an extension point for restoring persisted cache contents.
// It is a documented no-op: the cache always starts empty.
func (c *Cache) Load() {}

// Decimate is an extension point for eviction under memory pressure.
// It is a documented no-op: records are never proactively evicted; use
// FlushBGs or Clear to reclaim memory explicitly.
func (c *Cache) Decimate() {}

// Add is an extension point for seeding a record from outside the loader
// path. It is a documented no-op.
func (c *Cache) Add(path string, rec *Record) {}

package engine

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Deduplicator keeps a process-local window of recently admitted event
// identities plus the sequence low-water rule. The durable admission records
// (written transactionally with state mutations) remain the source of truth;
// the window is a fast path that short-circuits obvious replays before any
// store round trip.
type Deduplicator struct {
	seen       *lru.Cache
	windowSize int64
	windowAge  time.Duration
}

type seenEntry struct {
	at time.Time
}

// NewDeduplicator builds a window of the given identity capacity and age.
func NewDeduplicator(size int, age time.Duration) *Deduplicator {
	cache, _ := lru.New(size)
	return &Deduplicator{
		seen:       cache,
		windowSize: int64(size),
		windowAge:  age,
	}
}

// SeenRecently reports whether the identity was admitted within the window.
func (d *Deduplicator) SeenRecently(eventID string) bool {
	v, ok := d.seen.Get(eventID)
	if !ok {
		return false
	}
	entry := v.(seenEntry)
	if time.Since(entry.at) > d.windowAge {
		d.seen.Remove(eventID)
		return false
	}
	return true
}

// Remember records an admitted identity.
func (d *Deduplicator) Remember(eventID string) {
	d.seen.Add(eventID, seenEntry{at: time.Now()})
}

// StaleSeq reports whether an event sequence number is older than the
// window's low-water mark relative to the highest seq applied for the entity.
// Events below the mark are treated as stale duplicates, not errors; events
// within the window are tolerated reordering and admitted if their identity
// is new.
func (d *Deduplicator) StaleSeq(lastSeq, eventSeq int64) bool {
	return eventSeq <= lastSeq-d.windowSize
}

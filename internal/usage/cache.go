package usage

import (
	"slices"
	"sort"
	"time"

	"github.com/janekbaraniewski/tokenwatch/internal/core"
)

type aggregateEntry struct {
	modTime    time.Time
	rows       []core.UsageRow
	lastAccess time.Time
}

// aggregateCache keeps the rows computed for each session. An entry is valid
// only while its modTime equals the session's current modTime.
type aggregateCache struct {
	capacity int
	entries  map[string]*aggregateEntry
}

func newAggregateCache(capacity int) *aggregateCache {
	return &aggregateCache{capacity: capacity, entries: map[string]*aggregateEntry{}}
}

func (c *aggregateCache) get(sessionID string, modTime, now time.Time) ([]core.UsageRow, bool) {
	entry, ok := c.entries[sessionID]
	if !ok || !entry.modTime.Equal(modTime) {
		return nil, false
	}
	entry.lastAccess = now
	return entry.rows, true
}

func (c *aggregateCache) put(sessionID string, modTime time.Time, rows []core.UsageRow, now time.Time) {
	c.entries[sessionID] = &aggregateEntry{modTime: modTime, rows: rows, lastAccess: now}
}

func (c *aggregateCache) len() int { return len(c.entries) }

// evict drops least recently accessed entries until the cache is back at
// capacity and returns the evicted session ids. Ties on access time fall back
// to session id order.
func (c *aggregateCache) evict() []string {
	over := len(c.entries) - c.capacity
	if over <= 0 {
		return nil
	}
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.entries[ids[i]], c.entries[ids[j]]
		if !a.lastAccess.Equal(b.lastAccess) {
			return a.lastAccess.Before(b.lastAccess)
		}
		return ids[i] < ids[j]
	})
	evicted := ids[:over]
	for _, id := range evicted {
		delete(c.entries, id)
	}
	return evicted
}

// resultCache is the single-slot snapshot of the last global scan.
type resultCache struct {
	valid     bool
	scannedAt time.Time
	limit     int
	since     time.Time
	rows      []core.UsageRow
}

func (c *resultCache) get(q core.ScanQuery, now time.Time, ttl time.Duration) ([]core.UsageRow, bool) {
	if !c.valid || c.limit != q.Limit || !c.since.Equal(q.Since) {
		return nil, false
	}
	if now.Sub(c.scannedAt) >= ttl {
		return nil, false
	}
	return slices.Clone(c.rows), true
}

func (c *resultCache) set(q core.ScanQuery, now time.Time, rows []core.UsageRow) {
	c.valid = true
	c.scannedAt = now
	c.limit = q.Limit
	c.since = q.Since
	c.rows = slices.Clone(rows)
}

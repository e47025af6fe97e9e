// Package hashcache implements the short-lived seen-hash cache the block
// and transaction HashCheck consumers use to deduplicate inputs: a hash
// inserted now is reported seen until its configured duration elapses,
// then forgotten. It is intentionally not a correctness-critical store —
// a false negative (forgetting a hash too early) only costs redundant
// downstream work, never an accepted duplicate, since the stateful layer
// still judges chain suffixes against real storage.
package hashcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tendermint/nodecore/pkg/chain"
)

// Cache reports whether a hash was seen within its configured duration
// and records newly seen hashes. A single Cache instance is used by one
// HashCheck consumer at a time; spec.md's shared-resource policy keeps
// hash-check consumers non-concurrent per dispatcher, so Cache does not
// need its own locking beyond what the underlying LRU already provides
// for safety against incidental cross-goroutine access (e.g. a metrics
// reporter reading Len()).
type Cache struct {
	lru      *lru.Cache
	duration time.Duration
	now      func() time.Time
}

type entry struct {
	expiresAt time.Time
}

// New builds a Cache that treats a hash as seen for duration after it is
// inserted, bounded to capacity entries (oldest evicted first once full).
func New(capacity int, duration time.Duration) *Cache {
	return NewWithClock(capacity, duration, time.Now)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock(capacity int, duration time.Duration, now func() time.Time) *Cache {
	l, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors on capacity <= 0, which is a construction
		// bug, not a runtime condition callers can recover from.
		panic(err)
	}
	return &Cache{lru: l, duration: duration, now: now}
}

// Seen reports whether hash was inserted within the cache's duration. A
// hash that was inserted but has since expired is treated as unseen and
// evicted on this call.
func (c *Cache) Seen(hash chain.Hash) bool {
	key := string(hash)
	v, ok := c.lru.Get(key)
	if !ok {
		return false
	}
	e := v.(entry)
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return false
	}
	return true
}

// Insert records hash as seen as of now, superseding any prior entry.
func (c *Cache) Insert(hash chain.Hash) {
	c.lru.Add(string(hash), entry{expiresAt: c.now().Add(c.duration)})
}

// CheckAndInsert is the HashCheck consumer's primary operation: if hash
// was already seen, it reports true without mutating the cache; otherwise
// it inserts hash and reports false.
func (c *Cache) CheckAndInsert(hash chain.Hash) (alreadySeen bool) {
	if c.Seen(hash) {
		return true
	}
	c.Insert(hash)
	return false
}

// Len reports the number of live (not necessarily unexpired) entries.
func (c *Cache) Len() int { return c.lru.Len() }

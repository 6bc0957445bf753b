package peerrpc

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// idempotenceCache replays a peer's previous answer for a repeated
// (tx_id, phase) call instead of recomputing it (spec.md §4.2, "idempotent
// by (tx_id, phase)"). Bounded LRU rather than an unbounded map, since a
// long-lived peer otherwise accumulates one entry per transaction forever.
type idempotenceCache struct {
	cache *lru.Cache
}

func newIdempotenceCache(size int) *idempotenceCache {
	c, err := lru.New(size)
	if err != nil {
		// Only returns an error for size <= 0, which is a caller bug.
		panic(err)
	}
	return &idempotenceCache{cache: c}
}

func idempotenceKey(txID string, p phase) string {
	return fmt.Sprintf("%s:%s", txID, p)
}

func (c *idempotenceCache) get(txID string, p phase) (interface{}, bool) {
	return c.cache.Get(idempotenceKey(txID, p))
}

func (c *idempotenceCache) put(txID string, p phase, resp interface{}) {
	c.cache.Add(idempotenceKey(txID, p), resp)
}

// Package queue holds the local copy of the remote play queue and the
// service that keeps it in step with the server.
package queue

import (
	"sync"

	"github.com/tessro/spool/internal/core"
)

// Token identifies one in-flight request against the cache. Responses are
// committed only if their token is not older than the newest committed one
// and was issued in the current generation.
type Token struct {
	seq uint64
	gen uint64
}

// Cache is the single in-memory copy of the active queue.
type Cache struct {
	mu         sync.RWMutex
	q          *core.Queue
	issued     uint64
	committed  uint64
	generation uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Begin issues a token for a request that is about to start.
func (c *Cache) Begin() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return Token{seq: c.issued, gen: c.generation}
}

// Commit replaces the cached queue with q if tok is still current. It
// reports whether the cache was written.
func (c *Cache) Commit(tok Token, q *core.Queue) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok.gen != c.generation || tok.seq < c.committed {
		return false
	}
	c.committed = tok.seq
	c.q = q.Clone()
	return true
}

// Snapshot returns a copy of the cached queue, or nil.
func (c *Cache) Snapshot() *core.Queue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.q.Clone()
}

// QueueID returns the active queue ID, or core.NoQueue.
func (c *Cache) QueueID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.q.IsActive() {
		return core.NoQueue
	}
	return c.q.ID
}

// Generation returns the current cache generation.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Reset discards the cached queue. Responses to requests issued before the
// reset are dropped.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.committed = c.issued
	c.q = nil
}

// Replace discards the cached queue and installs q in one step. Responses
// to requests issued before the call are dropped.
func (c *Cache) Replace(q *core.Queue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.committed = c.issued
	c.q = q.Clone()
}

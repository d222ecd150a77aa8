// Package status holds the fast-path projection of in-flight
// sessions. The cache is a performance optimization only: it may be
// dropped and rebuilt from the durable store at any time, and no
// correctness-critical decision reads from it.
package status

import (
	"sync"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
)

type entry struct {
	status    *models.RealtimeStatus
	expiresAt time.Time
}

// Cache is an in-memory TTL map of session id to the latest
// RealtimeStatus. Writes are last-write-wins by seq stamp; a stale
// write (lower seq than the stored entry) is dropped.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache whose entries expire ttl after their last write.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores the projection for its session unless a newer seq is
// already cached. The entry's TTL restarts on every accepted write.
func (c *Cache) Put(st *models.RealtimeStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[st.SessionID]; ok && existing.status.Seq >= st.Seq {
		return
	}
	c.entries[st.SessionID] = entry{
		status:    st,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Get returns the cached projection for a session, or nil when absent
// or expired. Expired entries are removed lazily on read.
func (c *Cache) Get(sessionID string) *models.RealtimeStatus {
	c.mu.RLock()
	e, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// refreshed the entry.
		if current, ok := c.entries[sessionID]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, sessionID)
		}
		c.mu.Unlock()
		return nil
	}
	return e.status
}

// Delete removes a session's entry. Called on session completion.
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}

// Len returns the number of live (possibly expired, not yet reaped)
// entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

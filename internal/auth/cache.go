// ABOUTME: Authentication result cache interface and in-memory implementation.
// ABOUTME: Thread-safe TTL cache with size-bounded insertion-order eviction.

package auth

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// cacheOutcome labels what a cached entry represents.
type cacheOutcome string

const (
	outcomeOK   cacheOutcome = "ok"
	outcomeBad  cacheOutcome = "bad"
	outcomeNone cacheOutcome = "none"
)

// CachedResult is a cacheable authentication outcome. Negative results are
// cached too so a flood of bad credentials does not hammer the store.
type CachedResult struct {
	Outcome  cacheOutcome `json:"outcome"`
	Identity *Identity    `json:"identity,omitempty"`
}

func newCachedResult(id *Identity, err error) *CachedResult {
	switch {
	case id != nil:
		return &CachedResult{Outcome: outcomeOK, Identity: id}
	case errors.Is(err, ErrBadCredential):
		return &CachedResult{Outcome: outcomeBad}
	default:
		return &CachedResult{Outcome: outcomeNone}
	}
}

// identity converts a cached result back to the chain's return shape.
func (r *CachedResult) identity() (*Identity, error) {
	switch r.Outcome {
	case outcomeOK:
		return r.Identity, nil
	case outcomeBad:
		return nil, ErrBadCredential
	default:
		return nil, ErrUnauthenticated
	}
}

// Cache stores authentication results keyed by credential set. Lookup
// misses and expired entries both report ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (*CachedResult, bool)
	Set(ctx context.Context, key string, result *CachedResult, ttl time.Duration)
}

// memoryEntry stores the value, its deadline and its list element.
type memoryEntry struct {
	result  *CachedResult
	expires time.Time
	element *list.Element
}

// MemoryCache is a thread-safe, TTL-based, size-limited cache. A
// doubly-linked list maintains insertion order for O(1) eviction of the
// oldest entry when the cache is full.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	order   *list.List // keys in insertion order, oldest at front
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewMemoryCache creates a cache holding at most maxSize entries. A
// background goroutine periodically removes expired entries; call Close
// to stop it.
func NewMemoryCache(maxSize int) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached result for key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (*CachedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.result, true
}

// Set stores a result under key for the given TTL, evicting the oldest
// entry if the cache is full.
func (c *MemoryCache) Set(_ context.Context, key string, result *CachedResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.order.Remove(existing.element)
	} else if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			delete(c.entries, oldest.Value.(string))
			c.order.Remove(oldest)
		}
	}
	c.entries[key] = &memoryEntry{
		result:  result,
		expires: time.Now().Add(ttl),
		element: c.order.PushBack(key),
	}
}

// cleanup removes expired entries once a minute until Close is called.
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		key := e.Value.(string)
		if entry, ok := c.entries[key]; ok && now.After(entry.expires) {
			delete(c.entries, key)
			c.order.Remove(e)
		}
		e = next
	}
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *MemoryCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

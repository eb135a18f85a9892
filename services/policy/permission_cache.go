package policy

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services/limits"
	"go.uber.org/zap"
)

// PermissionKey identifies one cached capability answer
type PermissionKey struct {
	CallerID   uuid.UUID
	Permission string
}

// String returns a string representation of the cache key
func (k PermissionKey) String() string {
	return k.CallerID.String() + ":" + k.Permission
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        PermissionKey
	allowed    bool
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// PermissionCache is an in-memory LRU cache with TTL in front of an
// Authorizer. Only successful answers are cached.
type PermissionCache struct {
	upstream limits.Authorizer
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry // Key: PermissionKey.String()
	lruList *list.List             // Doubly linked list for LRU tracking
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64

	// generation is bumped by every invalidation; an upstream answer read
	// under an older generation is not stored.
	generation uint64
}

// NewPermissionCache creates a new PermissionCache with specified max size and TTL
func NewPermissionCache(upstream limits.Authorizer, maxSize int, ttl time.Duration, logger *zap.Logger) *PermissionCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &PermissionCache{
		upstream: upstream,
		logger:   logger,
		entries:  make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxSize:  maxSize,
		ttl:      ttl,
	}
}

// HasPermission answers from the cache, asking upstream on a miss
func (c *PermissionCache) HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error) {
	key := PermissionKey{CallerID: callerID, Permission: permission}

	allowed, ok, gen := c.get(key)
	if ok {
		return allowed, nil
	}

	allowed, err := c.upstream.HasPermission(ctx, callerID, permission)
	if err != nil {
		return false, err
	}

	c.set(key, allowed, gen)
	return allowed, nil
}

// get looks up a key, dropping it if expired. It also returns the
// generation the lookup observed.
func (c *PermissionCache) get(key PermissionKey) (bool, bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := key.String()
	entry, exists := c.entries[keyStr]

	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(keyStr)
		}
		return false, false, c.generation
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.allowed, true, c.generation
}

// set stores an answer read under generation gen. The write is dropped
// if the cache was invalidated since.
func (c *PermissionCache) set(key PermissionKey, allowed bool, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	keyStr := key.String()

	if entry, exists := c.entries[keyStr]; exists {
		entry.allowed = allowed
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        key,
		allowed:    allowed,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(keyStr)
	c.entries[keyStr] = entry
}

// InvalidateCaller removes all cache entries for a caller
func (c *PermissionCache) InvalidateCaller(callerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++

	for keyStr, entry := range c.entries {
		if entry.key.CallerID == callerID {
			c.removeEntry(keyStr)
		}
	}
}

// Clear removes all entries from the cache
func (c *PermissionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// OnConfigurationLoaded is a Store subscriber: answers cached under the
// previous snapshot are dropped before the new one is published.
func (c *PermissionCache) OnConfigurationLoaded(ctx context.Context, cfg *models.Configuration) {
	dropped := c.Stats().Size
	c.Clear()
	c.logger.Debug("permission cache cleared on policy load", zap.Int("dropped", dropped))
}

// Stats returns cache statistics
func (c *PermissionCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// calculateHitRate calculates the cache hit rate
func (c *PermissionCache) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *PermissionCache) removeEntry(keyStr string) {
	if entry, exists := c.entries[keyStr]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, keyStr)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *PermissionCache) evictLRU() {
	backElement := c.lruList.Back()
	if backElement != nil {
		keyStr := backElement.Value.(string)
		c.lruList.Remove(backElement)
		delete(c.entries, keyStr)
	}
}

// CleanupExpired removes all expired entries and returns how many were dropped
func (c *PermissionCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredKeys := make([]string, 0)
	for keyStr, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expiredKeys = append(expiredKeys, keyStr)
		}
	}

	for _, keyStr := range expiredKeys {
		c.removeEntry(keyStr)
	}

	return len(expiredKeys)
}

// StartCleanupWorker periodically removes expired entries until stopCh is closed
func (c *PermissionCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				c.logger.Debug("expired permission entries removed", zap.Int("count", n))
			}
		case <-stopCh:
			return
		}
	}
}

// Package cache provides the extraction content cache.
// The whole store is a single serialized blob that is read, modified and
// written back on every call.
package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/pkg/utils"

	"go.uber.org/zap"
)

// Entry is one cached payload
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

func (e Entry) expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// Options configures a ContentCache
type Options struct {
	TTL           time.Duration
	Capacity      int
	EvictionBatch int
}

// ContentCache is a time-boxed, size-bounded cache keyed by content hash
type ContentCache struct {
	mu      sync.Mutex
	blob    BlobStore
	opts    Options
	clock   utils.Clock
	metrics ports.Metrics
	logger  *zap.Logger

	hits      int64
	misses    int64
	evictions int64
}

// Stats reports cache counters
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
	Size      int     `json:"size"`
}

// NewContentCache creates a cache over the given blob store
func NewContentCache(blob BlobStore, opts Options, clock utils.Clock, metrics ports.Metrics, logger *zap.Logger) *ContentCache {
	if blob == nil {
		blob = NewMemoryBlob()
	}
	if clock == nil {
		clock = utils.RealClock()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 50
	}
	if opts.EvictionBatch <= 0 {
		opts.EvictionBatch = 10
	}
	return &ContentCache{
		blob:    blob,
		opts:    opts,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the cached payload. Expired entries read as absent and are purged.
func (c *ContentCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	entry, ok := entries[key]
	if ok && entry.expired(c.clock.Now()) {
		delete(entries, key)
		c.save(entries)
		ok = false
	}
	c.metrics.RecordCacheLookup(ok)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.Data, true
}

// Set stores a payload. When the store is full the oldest batch of entries
// is evicted before the insert.
func (c *ContentCache) Set(key string, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	if _, exists := entries[key]; !exists && len(entries) >= c.opts.Capacity {
		evicted := c.evictOldest(entries, c.opts.EvictionBatch)
		c.evictions += int64(evicted)
		c.metrics.RecordCacheEviction(evicted)
		c.logger.Debug("Evicted cache entries", zap.Int("count", evicted))
	}
	entries[key] = Entry{
		Key:       key,
		Data:      data,
		Timestamp: c.clock.Now(),
		TTL:       c.opts.TTL,
	}
	c.save(entries)
}

// Clear removes every entry
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.save(map[string]Entry{})
}

// GetStats returns cache statistics
func (c *ContentCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
		Size:      len(c.load()),
	}
}

func (c *ContentCache) evictOldest(entries map[string]Entry, n int) int {
	ordered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	if n > len(ordered) {
		n = len(ordered)
	}
	for _, e := range ordered[:n] {
		delete(entries, e.Key)
	}
	return n
}

// load must be called with the lock held. A corrupt blob reads as empty.
func (c *ContentCache) load() map[string]Entry {
	entries := map[string]Entry{}
	raw, err := c.blob.Load()
	if err != nil {
		c.logger.Warn("Failed to read content cache", zap.Error(err))
		return entries
	}
	if len(raw) == 0 {
		return entries
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger.Warn("Discarding corrupt content cache", zap.Error(err))
		return map[string]Entry{}
	}
	if entries == nil {
		// a "null" blob
		return map[string]Entry{}
	}
	return entries
}

// save must be called with the lock held
func (c *ContentCache) save(entries map[string]Entry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn("Failed to encode content cache", zap.Error(err))
		return
	}
	if err := c.blob.Store(raw); err != nil {
		c.logger.Warn("Failed to write content cache", zap.Error(err))
	}
}

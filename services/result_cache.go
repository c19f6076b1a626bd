package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/utils/cache"
)

// DefaultResultCacheTTL is how long identical uploads reuse a previous extraction
const DefaultResultCacheTTL = time.Hour

// ResultCache stores normalized extractions by content hash. Entries expire by TTL only.
type ResultCache interface {
	Get(ctx context.Context, hash string) (*model.NormalizedSyllabusData, bool)
	Set(ctx context.Context, hash string, data *model.NormalizedSyllabusData)
	Has(ctx context.Context, hash string) bool
}

// ContentHash is the cache key for a file's bytes
func ContentHash(fileBytes []byte) string {
	sum := sha256.Sum256(fileBytes)
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	data     *model.NormalizedSyllabusData
	storedAt time.Time
}

// MemoryResultCache is an in-process map with timestamps. It does not survive restarts.
type MemoryResultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryResultCache creates an empty cache; ttl <= 0 uses DefaultResultCacheTTL
func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &MemoryResultCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryResultCache) Get(_ context.Context, hash string) (*model.NormalizedSyllabusData, bool) {
	c.mu.RLock()
	entry, ok := c.entries[hash]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		if current, ok := c.entries[hash]; ok && current.storedAt.Equal(entry.storedAt) {
			delete(c.entries, hash)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

func (c *MemoryResultCache) Set(_ context.Context, hash string, data *model.NormalizedSyllabusData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = memoryEntry{data: data, storedAt: c.now()}
}

func (c *MemoryResultCache) Has(ctx context.Context, hash string) bool {
	_, ok := c.Get(ctx, hash)
	return ok
}

// Len returns the number of stored entries, including expired ones not yet read
func (c *MemoryResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// jsonStore is the part of cache.RedisCache the result cache uses
type jsonStore interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisResultCache shares extractions across instances through Redis.
// Redis errors are treated as misses so the pipeline never fails on the cache.
type RedisResultCache struct {
	store  jsonStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisResultCache creates a Redis-backed result cache
func NewRedisResultCache(redis *cache.RedisCache, ttl time.Duration, logger *zap.Logger) *RedisResultCache {
	return newRedisResultCache(redis.Namespace("syllabus:result"), ttl, logger)
}

func newRedisResultCache(store jsonStore, ttl time.Duration, logger *zap.Logger) *RedisResultCache {
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisResultCache{store: store, ttl: ttl, logger: logger}
}

func (c *RedisResultCache) Get(ctx context.Context, hash string) (*model.NormalizedSyllabusData, bool) {
	var data model.NormalizedSyllabusData
	if err := c.store.GetJSON(ctx, hash, &data); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.logger.Warn("result cache read failed", zap.String("content_hash", hash), zap.Error(err))
		}
		return nil, false
	}
	if data.Events == nil {
		data.Events = []model.SyllabusEvent{}
	}
	return &data, true
}

func (c *RedisResultCache) Set(ctx context.Context, hash string, data *model.NormalizedSyllabusData) {
	if err := c.store.SetJSON(ctx, hash, data, c.ttl); err != nil {
		c.logger.Warn("result cache write failed", zap.String("content_hash", hash), zap.Error(err))
	}
}

func (c *RedisResultCache) Has(ctx context.Context, hash string) bool {
	ok, err := c.store.Exists(ctx, hash)
	if err != nil {
		c.logger.Warn("result cache lookup failed", zap.String("content_hash", hash), zap.Error(err))
		return false
	}
	return ok
}

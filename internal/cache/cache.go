package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/models"
	"go.uber.org/zap"
)

// Cache is a two-level response cache: an in-memory LRU in front of JSON
// files on disk. Disk survives restarts; memory bounds hot lookups.
type Cache struct {
	mu         sync.Mutex
	dir        string
	ttl        time.Duration
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	hits       uint64
	misses     uint64
	logger     *zap.Logger
}

type entry struct {
	key       string
	resp      *models.ModelResponse
	expiresAt time.Time
}

// record is the on-disk form of one cached response.
type record struct {
	Key       string                `json:"key"`
	Response  *models.ModelResponse `json:"response"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// New creates a cache rooted at cfg.Dir.
func New(cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		dir:        cfg.Dir,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		logger:     logger,
	}, nil
}

// Key derives the cache key for a request. Identical model, prompts, and
// sampling parameters hash to the same key.
func Key(req *models.ModelRequest, model string) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\n", model)
	fmt.Fprintf(h, "system=%s\n", req.System)
	for _, m := range req.Messages {
		fmt.Fprintf(h, "%s:%s\n", m.Role, m.Content)
	}
	if req.Temperature != nil {
		fmt.Fprintf(h, "temp=%v\n", *req.Temperature)
	}
	if req.MaxTokens != nil {
		fmt.Fprintf(h, "max=%d\n", *req.MaxTokens)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached response within its TTL. The returned copy is marked
// Cached=true.
func (c *Cache) Get(key string) (*models.ModelResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if time.Now().Before(e.expiresAt) {
			c.ll.MoveToFront(el)
			c.hits++
			return cachedCopy(e.resp), true
		}
		c.removeLocked(el)
	}

	// Memory miss: try disk and promote.
	if rec, err := c.readDisk(key); err == nil && time.Now().Before(rec.ExpiresAt) {
		c.insertLocked(key, rec.Response, rec.ExpiresAt)
		c.hits++
		return cachedCopy(rec.Response), true
	}

	c.misses++
	return nil, false
}

// Put stores a response in both levels. Disk write failures are logged, not
// returned: the cache is an optimization, never a hard dependency.
func (c *Cache) Put(key string, resp *models.ModelResponse) {
	expiresAt := time.Now().Add(c.ttl)

	c.mu.Lock()
	c.insertLocked(key, resp, expiresAt)
	c.mu.Unlock()

	rec := record{Key: key, Response: resp, ExpiresAt: expiresAt}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err == nil {
		err = os.WriteFile(c.diskPath(key), data, 0644)
	}
	if err != nil {
		c.logger.Warn("failed to persist cache entry", zap.Error(err))
	}
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: c.ll.Len(), Hits: c.hits, Misses: c.misses}
}

func (c *Cache) insertLocked(key string, resp *models.ModelResponse, expiresAt time.Time) {
	if el, ok := c.items[key]; ok {
		el.Value.(*entry).resp = resp
		el.Value.(*entry).expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{key: key, resp: resp, expiresAt: expiresAt})
	c.items[key] = el

	for c.ll.Len() > c.maxEntries {
		c.removeLocked(c.ll.Back())
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.ll.Remove(el)
}

func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) readDisk(key string) (*record, error) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache record: %w", err)
	}
	if rec.Response == nil {
		return nil, fmt.Errorf("cache record missing response")
	}
	return &rec, nil
}

func cachedCopy(resp *models.ModelResponse) *models.ModelResponse {
	out := *resp
	out.Cached = true
	return &out
}

package template

import (
	"container/list"
	"sync"
	"time"
)

// CacheConfig contains the options of a template cache.
type CacheConfig struct {
	// MaxSize is the maximum number of templates to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration
}

// TemplateCache is an LRU cache of parsed templates keyed by source
// path. It is used by PrepareFile.
type TemplateCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lru     *list.List
	config  CacheConfig
}

type cacheEntry struct {
	key     string
	tmpl    *Template
	expiry  time.Time
	element *list.Element
}

// NewTemplateCache creates a cache configured from the global
// configuration.
func NewTemplateCache() *TemplateCache {
	config := GetGlobalConfig()
	return NewTemplateCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewTemplateCacheWithConfig creates a cache with the given configuration.
func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	return &TemplateCache{
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
		config:  config,
	}
}

// Get returns the cached template for key, if present and not expired.
func (tc *TemplateCache) Get(key string) (*Template, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.entries[key]
	if !ok {
		return nil, false
	}
	if tc.config.TTL > 0 && time.Now().After(entry.expiry) {
		tc.removeEntry(entry)
		return nil, false
	}
	tc.lru.MoveToFront(entry.element)
	return entry.tmpl, true
}

// Set stores the template under key, evicting the least recently used
// entry when the cache is full.
func (tc *TemplateCache) Set(key string, tmpl *Template) {
	if tc.config.MaxSize == 0 {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if entry, ok := tc.entries[key]; ok {
		entry.tmpl = tmpl
		entry.expiry = tc.expiry()
		tc.lru.MoveToFront(entry.element)
		return
	}
	for tc.config.MaxSize > 0 && len(tc.entries) >= tc.config.MaxSize {
		oldest := tc.lru.Back()
		if oldest == nil {
			break
		}
		tc.removeEntry(oldest.Value.(*cacheEntry))
	}
	entry := &cacheEntry{key: key, tmpl: tmpl, expiry: tc.expiry()}
	entry.element = tc.lru.PushFront(entry)
	tc.entries[key] = entry
}

// Remove drops the entry for key, if present.
func (tc *TemplateCache) Remove(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if entry, ok := tc.entries[key]; ok {
		tc.removeEntry(entry)
	}
}

// Clear removes all entries.
func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries = make(map[string]*cacheEntry)
	tc.lru.Init()
}

// Len returns the number of cached templates.
func (tc *TemplateCache) Len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.entries)
}

func (tc *TemplateCache) expiry() time.Time {
	if tc.config.TTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(tc.config.TTL)
}

func (tc *TemplateCache) removeEntry(entry *cacheEntry) {
	tc.lru.Remove(entry.element)
	delete(tc.entries, entry.key)
}

var (
	defaultCache     *TemplateCache
	defaultCacheOnce sync.Once
)

// DefaultCache returns the process-wide template cache.
func DefaultCache() *TemplateCache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewTemplateCache()
	})
	return defaultCache
}

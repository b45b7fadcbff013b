package worker

import (
	"path"
	"strings"
	"sync"
)

// CacheStorage is the content-addressable response store the worker reads and
// writes. Generations are named snapshots rotated on activation of a new
// worker version; the store is an external collaborator and its operations
// must be individually atomic.
type CacheStorage interface {
	Open(name string) (Cache, error)
	Names() ([]string, error)
	Delete(name string) (bool, error)
}

// Cache maps absolute request URLs to response snapshots within one generation.
type Cache interface {
	Put(key string, response *Response) error
	Match(key string) (*Response, bool, error)
}

// cacheableExtensions is the content-type policy: only static assets and
// documents are worth keeping for offline use. Cross-origin and non-GET
// requests never reach this check.
var cacheableExtensions = map[string]bool{
	"":       true, // extensionless paths are documents
	".html":  true,
	".css":   true,
	".js":    true,
	".json":  true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".svg":   true,
	".ico":   true,
	".webp":  true,
	".woff":  true,
	".woff2": true,
}

func cacheablePath(requestPath string) bool {
	return cacheableExtensions[strings.ToLower(path.Ext(requestPath))]
}

// MemoryCacheStorage is the in-memory CacheStorage used by the runtime when
// no persistent store is supplied, and by tests.
type MemoryCacheStorage struct {
	mu          sync.Mutex
	generations map[string]*memoryCache
}

func NewMemoryCacheStorage() *MemoryCacheStorage {
	return &MemoryCacheStorage{generations: make(map[string]*memoryCache)}
}

func (s *MemoryCacheStorage) Open(name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, exists := s.generations[name]
	if !exists {
		cache = &memoryCache{entries: make(map[string]*Response)}
		s.generations[name] = cache
	}
	return cache, nil
}

func (s *MemoryCacheStorage) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	return names, nil
}

func (s *MemoryCacheStorage) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.generations[name]; !exists {
		return false, nil
	}
	delete(s.generations, name)
	return true, nil
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Response
}

func (c *memoryCache) Put(key string, response *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = response.Clone()
	return nil
}

func (c *memoryCache) Match(key string) (*Response, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	response, exists := c.entries[key]
	if !exists {
		return nil, false, nil
	}
	return response.Clone(), true, nil
}

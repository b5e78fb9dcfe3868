package texture

import (
	"image"
	"sync"
)

// Cache memoizes decoded textures by key, typically an image index or URI.
// It is safe for concurrent use, so parallel clip/material loads can share
// one cache.
type Cache struct {
	mu      sync.RWMutex
	decoded map[string]*image.NRGBA
}

// NewCache creates an empty texture cache.
func NewCache() *Cache {
	return &Cache{decoded: make(map[string]*image.NRGBA)}
}

// GetOrDecode returns the cached texture for key, decoding and storing it on
// first use. Decode failures are not cached; every caller retries.
//
// Parameters:
//   - key: the cache key (image index, URI, ...)
//   - data: the encoded image bytes, used only on a cache miss
//
// Returns:
//   - *image.NRGBA: the decoded pixels
//   - error: error if decoding fails
func (c *Cache) GetOrDecode(key string, data []byte) (*image.NRGBA, error) {
	c.mu.RLock()
	img, ok := c.decoded[key]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	decoded, err := Decode(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have decoded the same key in the meantime; keep
	// the first stored copy so callers share one buffer.
	if img, ok := c.decoded[key]; ok {
		return img, nil
	}
	c.decoded[key] = decoded
	return decoded, nil
}

// Len returns the number of cached textures.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decoded)
}

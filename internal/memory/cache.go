package memory

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// embedCacheSize keeps RAM negligible: 50 * 768 floats is on the order of
// a few hundred kilobytes.
const embedCacheSize = 50

// embedCache is a small LRU for query embeddings, so repeated searches do
// not re-call the embedding model.
type embedCache struct {
	mu    sync.Mutex
	max   int
	order []string
	vecs  map[string][]float64
}

func newEmbedCache(max int) *embedCache {
	return &embedCache{max: max, vecs: make(map[string][]float64, max)}
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *embedCache) get(text string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(text)
	vec, ok := c.vecs[key]
	if ok {
		c.touch(key)
	}
	return vec, ok
}

func (c *embedCache) put(text string, vec []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(text)
	if _, exists := c.vecs[key]; exists {
		c.vecs[key] = vec
		c.touch(key)
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.vecs, oldest)
	}
	c.order = append(c.order, key)
	c.vecs[key] = vec
}

// touch moves key to the most-recently-used end.
func (c *embedCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}

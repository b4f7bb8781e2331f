package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Entries int `json:"entries"`
}

// responseCache memoizes completed responses keyed by a content hash of the
// request. Streaming requests are never cached: the manager skips the cache
// entirely for them.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]Response
	hits    int
	misses  int
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]Response)}
}

// cacheKey hashes the fields that determine a deterministic response:
// messages, temperature and max tokens.
func cacheKey(req Request) string {
	payload, _ := json.Marshal(struct {
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens"`
	}{req.Messages, req.Temperature, req.MaxTokens})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// get returns a copy of the cached response marked Cached, if present.
func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	resp.Cached = true
	return &resp, true
}

// put stores a copy of the response.
func (c *responseCache) put(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *resp
}

func (c *responseCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

package proxy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	data    []byte
	ctype   string
	created time.Time
}

type pageCache struct {
	mu   sync.RWMutex
	now  func() time.Time
	ttl  time.Duration
	data map[string]cacheEntry
}

// newPageCache keeps transformed pages for ttl; a negative ttl disables it.
func newPageCache(now func() time.Time, ttl time.Duration) *pageCache {
	if now == nil {
		now = time.Now
	}
	return &pageCache{
		now:  now,
		ttl:  ttl,
		data: make(map[string]cacheEntry),
	}
}

func cacheKey(kind, target string, opts viewOptions) string {
	prefs := make([]string, 0, len(opts.Prefs))
	for k, v := range opts.Prefs {
		prefs = append(prefs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(prefs)
	return kind + "|" + target +
		"|m=" + strings.Join(opts.Modes, ",") +
		"|f=" + formatFlags(opts.Flags) +
		"|p=" + strings.Join(prefs, "&")
}

func (c *pageCache) Store(key string, data []byte, ctype string) {
	if c == nil || c.ttl < 0 || len(data) == 0 {
		return
	}
	c.mu.Lock()
	c.data[key] = cacheEntry{data: append([]byte(nil), data...), ctype: ctype, created: c.now()}
	c.mu.Unlock()
}

func (c *pageCache) Select(key string) ([]byte, string, bool) {
	if c == nil || c.ttl < 0 {
		return nil, "", false
	}
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	if c.ttl > 0 && c.now().Sub(entry.created) > c.ttl {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, "", false
	}
	return entry.data, entry.ctype, true
}

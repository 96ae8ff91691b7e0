package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FrameCache keeps encoded static frames in a byte-bounded memory LRU
// backed by an optional sha1-sharded directory.
type FrameCache struct {
	mem     *frameLRU
	dir     string
	maxDisk int64
	diskMu  sync.Mutex
}

// NewFrameCache builds a cache; memBytes <= 0 disables the memory tier and
// an empty dir disables the disk tier.
func NewFrameCache(memBytes int64, dir string, diskBytes int64) *FrameCache {
	c := &FrameCache{maxDisk: diskBytes}
	if memBytes > 0 {
		c.mem = newFrameLRU(memBytes)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			c.dir = dir
		}
	}
	return c
}

func (c *FrameCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if b, ok := c.mem.get(key); ok {
		return b, true
	}
	b, ok := c.diskGet(key)
	if ok {
		c.mem.put(key, b)
	}
	return b, ok
}

func (c *FrameCache) Put(key string, data []byte) {
	if c == nil || len(data) == 0 {
		return
	}
	c.mem.put(key, data)
	c.diskPut(key, data)
}

func (c *FrameCache) diskPath(key string) (string, string) {
	sum := sha1.Sum([]byte(key))
	name := hex.EncodeToString(sum[:])
	dir := filepath.Join(c.dir, name[:1], name[1:2])
	return dir, filepath.Join(dir, name+".bin")
}

func (c *FrameCache) diskGet(key string) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}
	_, path := c.diskPath(key)
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return b, true
}

func (c *FrameCache) diskPut(key string, data []byte) {
	if c.dir == "" {
		return
	}
	dir, path := c.diskPath(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return
	}
	c.prune()
}

// prune drops the least recently used files until the directory fits.
func (c *FrameCache) prune() {
	if c.maxDisk <= 0 {
		return
	}
	c.diskMu.Lock()
	defer c.diskMu.Unlock()
	type entry struct {
		path string
		size int64
		mod  time.Time
	}
	var files []entry
	var total int64
	_ = filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".bin") {
			return nil
		}
		if info, e := d.Info(); e == nil {
			files = append(files, entry{p, info.Size(), info.ModTime()})
			total += info.Size()
		}
		return nil
	})
	if total <= c.maxDisk {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	for _, f := range files {
		if total <= c.maxDisk {
			break
		}
		if os.Remove(f.path) == nil {
			total -= f.size
		}
	}
}

type frameEntry struct {
	key        string
	data       []byte
	prev, next *frameEntry
}

type frameLRU struct {
	mu   sync.Mutex
	max  int64
	size int64
	m    map[string]*frameEntry
	head *frameEntry
	tail *frameEntry
}

func newFrameLRU(max int64) *frameLRU {
	return &frameLRU{max: max, m: map[string]*frameEntry{}}
}

func (c *frameLRU) unlink(e *frameEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *frameLRU) pushFront(e *frameEntry) {
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *frameLRU) get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	c.unlink(e)
	c.pushFront(e)
	return append([]byte(nil), e.data...), true
}

func (c *frameLRU) put(key string, data []byte) {
	if c == nil || int64(len(data)) > c.max {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.m[key]; ok {
		c.size -= int64(len(e.data))
		c.unlink(e)
		delete(c.m, key)
	}
	e := &frameEntry{key: key, data: append([]byte(nil), data...)}
	c.pushFront(e)
	c.m[key] = e
	c.size += int64(len(e.data))
	for c.size > c.max && c.tail != nil {
		old := c.tail
		c.unlink(old)
		delete(c.m, old.key)
		c.size -= int64(len(old.data))
	}
}

func (c *frameLRU) count() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

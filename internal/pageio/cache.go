package pageio

import "container/list"

// PageSize is the engine-wide fixed page size (spec §3).
const PageSize = 4096

// cacheKey identifies one page across every open file sharing a cache.
// Spec §5: "a process-wide page cache keyed by (file_name, page_num)".
// We still parameterize each File with an explicit *Cache reference
// (owned by the engine, not a package-level singleton) per the "Global
// state" design note, rather than reaching for a real global.
type cacheKey struct {
	file string
	page int32
}

type cacheEntry struct {
	key cacheKey
	buf [PageSize]byte
}

// Cache is a small fixed-capacity write-through page cache, shared by
// every paged file an engine opens. Write-through means WritePage always
// persists to the OS file immediately and refreshes the cached copy in
// the same call, so a cached read is always byte-identical to the most
// recent write — the "must never return stale data" requirement in spec
// §4.1 holds trivially, and eviction never needs to flush anything.
//
// Grounded on the LRU buffer pool in SimonWaldherr/tinySQL's
// internal/storage/pager/pager.go and the teacher's btree.Config.CacheSize
// knob, reshaped around container/list the way that pager does.
type Cache struct {
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List // front = most recently used
}

// NewCache builds a cache holding at most capacity pages. A non-positive
// capacity defaults to 1024, matching the teacher's BufferPoolConfig
// default.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *Cache) get(file string, page int32) ([]byte, bool) {
	key := cacheKey{file, page}
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	out := make([]byte, PageSize)
	copy(out, e.buf[:])
	return out, true
}

func (c *Cache) put(file string, page int32, buf []byte) {
	key := cacheKey{file, page}
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		copy(e.buf[:], buf)
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	e := &cacheEntry{key: key}
	copy(e.buf[:], buf)
	el := c.order.PushFront(e)
	c.entries[key] = el
}

func (c *Cache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}

// invalidateFile drops every cached page belonging to file, used when a
// file is closed so a later reopen under the same name never reads a
// stale page from a previous incarnation.
func (c *Cache) invalidateFile(file string) {
	for key, el := range c.entries {
		if key.file == file {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

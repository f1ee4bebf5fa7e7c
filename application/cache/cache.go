// Package cache stores responses as byte ranges per URL, bounded by a memory quota.
package cache

import (
	"browser-core/application/util/uri"
	"container/list"
	"fmt"
	"log/slog"
	"sync"
)

type Options struct {
	// Quota bounds stored plus derived bytes. Zero or less disables eviction.
	Quota int64
	// Watermark is the fraction of Quota eviction brings the total down to.
	Watermark float64
}

var DefaultOptions = Options{
	Quota:     8 << 20,
	Watermark: 0.9,
}

type ShrinkMode uint8

const (
	// ShrinkNormal evicts only when over quota, down to the watermark.
	ShrinkNormal ShrinkMode = iota
	// ShrinkAll evicts everything that is not pinned.
	ShrinkAll
)

type Cache struct {
	mu sync.Mutex

	entries map[string]*Entry
	lru     *list.List // front is most recently used.

	size        int64
	derivedSize int64

	opts   Options
	logger *slog.Logger
}

func New(logger *slog.Logger, opts Options) *Cache {
	if opts.Watermark <= 0 || opts.Watermark > 1 {
		opts.Watermark = DefaultOptions.Watermark
	}

	return &Cache{
		entries: make(map[string]*Entry),
		lru:     list.New(),
		opts:    opts,
		logger:  logger,
	}
}

// Get finds the entry for rawURL and marks it most recently used.
func (c *Cache) Get(rawURL string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[uri.CacheKey(rawURL)]
	if !ok {
		return nil, false
	}

	c.lru.MoveToFront(e.elem)
	return e, true
}

// Find is Get without touching the recency order.
func (c *Cache) Find(rawURL string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[uri.CacheKey(rawURL)]
	return e, ok
}

// GetOrCreate returns the entry for rawURL, creating an empty incomplete one if needed.
func (c *Cache) GetOrCreate(rawURL string) (e *Entry, created bool) {
	key := uri.CacheKey(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.lru.MoveToFront(e.elem)
		return e, false
	}

	e = newEntry(c, key)
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e

	c.logger.Debug("cache entry created", slog.String("url", key))

	return e, true
}

// Delete removes e. Deleting a locked entry is a bookkeeping error and panics.
func (c *Cache) Delete(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delete(e)
}

func (c *Cache) delete(e *Entry) {
	if e.refcount > 0 {
		panic("cache: deleting locked entry " + e.url)
	}
	if e.deleted {
		return
	}

	c.lru.Remove(e.elem)
	delete(c.entries, e.url)

	c.size -= e.size
	c.derivedSize -= int64(len(e.derived))
	e.deleted = true
}

// Shrink evicts derived data first, then whole entries from the least recently used end.
// Locked entries and entries in use are skipped. It returns the number of bytes freed.
func (c *Cache) Shrink(mode ShrinkMode) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.shrink(mode, nil)
}

func (c *Cache) shrink(mode ShrinkMode, except *Entry) int64 {
	var target int64
	switch mode {
	case ShrinkNormal:
		if c.opts.Quota <= 0 || c.total() <= c.opts.Quota {
			return 0
		}
		target = int64(float64(c.opts.Quota) * c.opts.Watermark)
	case ShrinkAll:
		target = 0
	}

	c.verify()

	var freed int64
	for el := c.lru.Back(); el != nil && c.total() > target; el = el.Prev() {
		e := el.Value.(*Entry)
		if e.inUse > 0 || e == except {
			continue
		}
		freed += e.dropDerived()
	}

	evicted := 0
	for el := c.lru.Back(); el != nil && c.total() > target; {
		prev := el.Prev()

		e := el.Value.(*Entry)
		if e.refcount == 0 && e.inUse == 0 && e != except {
			freed += e.size
			c.delete(e)
			evicted++
		}

		el = prev
	}

	c.logger.Debug("cache shrunk",
		slog.Int64("freed", freed),
		slog.Int("evicted", evicted),
		slog.Int64("size", c.size),
		slog.Int64("derived", c.derivedSize),
	)

	return freed
}

// verify recomputes the byte counters. A mismatch means corrupted bookkeeping.
func (c *Cache) verify() {
	var size, derived int64
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry)

		var sum int64
		for _, f := range e.frags {
			sum += f.Len()
		}
		if sum != e.size {
			panic(fmt.Sprintf("cache: entry %s counts %d bytes, holds %d", e.url, e.size, sum))
		}

		size += e.size
		derived += int64(len(e.derived))
	}

	if size != c.size || derived != c.derivedSize {
		panic(fmt.Sprintf("cache: counters %d/%d, entries hold %d/%d",
			c.size, c.derivedSize, size, derived))
	}
}

func (c *Cache) total() int64 { return c.size + c.derivedSize }

// Size is the number of stored bytes across entries, derived data excluded.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Cache) DerivedSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.derivedSize
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// URLs lists the keys from most to least recently used.
func (c *Cache) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry).url)
	}
	return out
}

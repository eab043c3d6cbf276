// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tiger

package tiger

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultEntryCacheSize is default byte budget of EntryCache.
const DefaultEntryCacheSize = 64 << 20

// EntryCache memoizes reconstructed entries by reference for content decoders
// that resolve the same entries repeatedly (string banks, startup strings).
// Its lifetime is that of the resolver it wraps; safe for concurrent use.
type EntryCache struct {
	// r reconstructs missing entries.
	r *Resolver
	// items holds cached entries.
	items map[Reference]Extracted
	// fetchGroup collapses concurrent loads of one reference.
	fetchGroup singleflight.Group
	// order is insertion order for FIFO eviction.
	order []Reference
	// mu guards items, order, and size.
	mu sync.Mutex
	// size is total cached payload bytes.
	size int64
	// maxBytes bounds cached payload bytes.
	maxBytes int64
}

// NewEntryCache creates cache over resolver; maxBytes <= 0 uses DefaultEntryCacheSize.
func NewEntryCache(r *Resolver, maxBytes int64) *EntryCache {
	if maxBytes <= 0 {
		maxBytes = DefaultEntryCacheSize
	}

	return &EntryCache{
		r:        r,
		items:    make(map[Reference]Extracted),
		maxBytes: maxBytes,
	}
}

// Get returns entry addressed by ref, reconstructing and caching it on miss.
// Returned Data is shared and must not be modified.
func (c *EntryCache) Get(ref Reference) (Extracted, error) {
	if c == nil || c.r == nil {
		return Extracted{}, ErrNilResolver
	}

	c.mu.Lock()
	item, ok := c.items[ref]
	c.mu.Unlock()
	if ok {
		return item, nil
	}

	v, err, _ := c.fetchGroup.Do(strconv.FormatUint(uint64(ref), 16), func() (any, error) {
		x, err := c.r.ReadReference(ref)
		if err != nil {
			return Extracted{}, err
		}

		c.put(ref, x)
		return x, nil
	})
	if err != nil {
		return Extracted{}, err
	}

	return v.(Extracted), nil //nolint:forcetypeassert // group returns only Extracted
}

// Len returns number of cached entries.
func (c *EntryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Size returns cached payload bytes.
func (c *EntryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// Reset drops all cached entries.
func (c *EntryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.items)
	c.order = c.order[:0]
	c.size = 0
}

// put stores entry and evicts oldest entries above byte budget.
// Entries larger than the whole budget are not cached.
func (c *EntryCache) put(ref Reference, x Extracted) {
	n := int64(len(x.Data))
	if n > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[ref]; exists {
		return
	}

	for c.size+n > c.maxBytes && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.size -= int64(len(c.items[oldest].Data))
		delete(c.items, oldest)
	}

	c.items[ref] = x
	c.order = append(c.order, ref)
	c.size += n
}

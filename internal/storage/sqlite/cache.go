package sqlite

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/sandevgo/tuskmem/internal/core"
)

// MemoryBackend is a MemoryStore that can also forget a namespace.
type MemoryBackend interface {
	core.MemoryStore
	Delete(ctx context.Context, namespace core.Namespace) (int64, error)
}

var _ MemoryBackend = (*CachedMemoryStore)(nil)

// CachedMemoryStore keeps recent Search results in memory. Writes drop the
// cached entries of every ancestor namespace.
type CachedMemoryStore struct {
	next  MemoryBackend
	cache *ristretto.Cache
}

func NewCachedMemoryStore(next MemoryBackend, maxItems int64) (*CachedMemoryStore, error) {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &CachedMemoryStore{next: next, cache: cache}, nil
}

func (c *CachedMemoryStore) Search(ctx context.Context, namespace core.Namespace) ([]core.MemoryItem, error) {
	key := namespace.String()
	if v, ok := c.cache.Get(key); ok {
		return cloneItems(v.([]core.MemoryItem)), nil
	}

	items, err := c.next.Search(ctx, namespace)
	if err != nil {
		return nil, err
	}
	cost := int64(len(items))
	if cost == 0 {
		cost = 1
	}
	c.cache.Set(key, cloneItems(items), cost)
	c.cache.Wait()
	return items, nil
}

func (c *CachedMemoryStore) Put(ctx context.Context, item core.MemoryItem) error {
	if err := c.next.Put(ctx, item); err != nil {
		return err
	}
	c.invalidate(item.Namespace)
	return nil
}

func (c *CachedMemoryStore) Delete(ctx context.Context, namespace core.Namespace) (int64, error) {
	n, err := c.next.Delete(ctx, namespace)
	// children of namespace may be cached under their own keys
	c.cache.Clear()
	return n, err
}

func (c *CachedMemoryStore) Close() {
	c.cache.Close()
}

func (c *CachedMemoryStore) invalidate(namespace core.Namespace) {
	for i := 0; i <= len(namespace); i++ {
		c.cache.Del(namespace[:i].String())
	}
}

func cloneItems(items []core.MemoryItem) []core.MemoryItem {
	if items == nil {
		return nil
	}
	out := make([]core.MemoryItem, len(items))
	copy(out, items)
	return out
}

package fetch

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"fundquant/internal/domain"
)

// Cache holds one atomically swapped Snapshot per dataset and coalesces
// concurrent refreshes per dataset. Readers never observe a partially built
// snapshot. A Cache is shared by every component that needs snapshots and
// may be replaced with a pre-seeded one in tests.
type Cache struct {
	mu     sync.Mutex
	slots  map[domain.Dataset]*atomic.Pointer[domain.Snapshot]
	flight singleflight.Group
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{slots: make(map[domain.Dataset]*atomic.Pointer[domain.Snapshot])}
}

func (c *Cache) slot(ds domain.Dataset) *atomic.Pointer[domain.Snapshot] {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.slots[ds]
	if !ok {
		p = new(atomic.Pointer[domain.Snapshot])
		c.slots[ds] = p
	}
	return p
}

// Load returns the current snapshot for ds, or nil.
func (c *Cache) Load(ds domain.Dataset) *domain.Snapshot {
	return c.slot(ds).Load()
}

// Store replaces the snapshot for ds.
func (c *Cache) Store(ds domain.Dataset, snap *domain.Snapshot) {
	c.slot(ds).Store(snap)
}

// Clear drops the snapshot for ds, or for every dataset when ds is empty.
func (c *Cache) Clear(ds domain.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.slots {
		if ds == "" || k == ds {
			p.Store(nil)
		}
	}
}

// Datasets returns the datasets that currently hold a snapshot.
func (c *Cache) Datasets() []domain.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Dataset
	for k, p := range c.slots {
		if p.Load() != nil {
			out = append(out, k)
		}
	}
	return out
}

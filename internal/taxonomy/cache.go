package taxonomy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/dojo/pkg/models"
)

// DefaultCacheTTL is how long a loaded snapshot is served before reloading.
const DefaultCacheTTL = 5 * time.Minute

// LoadTimeout bounds a shared snapshot load.
const LoadTimeout = 30 * time.Second

// NodeLister loads every taxonomy node from persistent storage.
type NodeLister interface {
	ListTaxonomyNodes(ctx context.Context) ([]models.TaxonomyNode, error)
}

// Cache serves taxonomy snapshots with a fixed time-to-live.
// Concurrent misses share a single load.
type Cache struct {
	loadedAt time.Time
	lister   NodeLister
	snap     *Snapshot
	now      func() time.Time
	log      zerolog.Logger
	group    singleflight.Group
	ttl      time.Duration
	gen      uint64
	mu       sync.RWMutex
}

// NewCache creates a cache over lister. A non-positive ttl uses DefaultCacheTTL.
func NewCache(lister NodeLister, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "taxonomy-cache").Logger(),
	}
}

// Get returns the cached snapshot, loading it when missing or expired.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	// Fast path: fresh snapshot under read lock
	c.mu.RLock()
	if c.snap != nil && c.now().Sub(c.loadedAt) < c.ttl {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	// Every waiter shares the load; it outlives the caller that started it.
	ch := c.group.DoChan(fmt.Sprintf("taxonomy-%d", gen), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		return c.load(loadCtx, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (c *Cache) load(ctx context.Context, gen uint64) (*Snapshot, error) {
	start := c.now()
	nodes, err := c.lister.ListTaxonomyNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list taxonomy nodes: %w", err)
	}
	snap, err := NewSnapshot(nodes)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// An invalidation that raced this load wins; the snapshot is still
	// returned to current waiters but not cached.
	if c.gen == gen {
		c.snap = snap
		c.loadedAt = c.now()
	}
	c.mu.Unlock()

	c.log.Debug().
		Int("nodes", snap.Len()).
		Dur("elapsed", c.now().Sub(start)).
		Msg("Taxonomy snapshot loaded")

	return snap, nil
}

// Invalidate drops the cached snapshot. The next Get reloads from storage.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.loadedAt = time.Time{}
	c.gen++
	c.mu.Unlock()

	c.log.Info().Msg("Taxonomy cache invalidated")
}

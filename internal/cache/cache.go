package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fundamentusapi/internal/fundamentus"
)

// DefaultTTL is how long a loaded table is served before it is refreshed.
const DefaultTTL = time.Hour

const flightKey = "table"

// Loader produces a complete TickerTable.
type Loader interface {
	Load(ctx context.Context) (fundamentus.TickerTable, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (fundamentus.TickerTable, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (fundamentus.TickerTable, error) {
	return f(ctx)
}

// Entry is a loaded table and the time it was computed.
type Entry struct {
	Table      fundamentus.TickerTable
	ComputedAt time.Time

	generation uint64
}

// Option configures a Table.
type Option func(*Table)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Table) {
		c.now = now
	}
}

// WithLoadTimeout bounds a single refresh. Refreshes run detached from the
// caller that triggered them, so a caller giving up does not abort the load
// for everyone else waiting on it.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Table) {
		c.loadTimeout = d
	}
}

// Table caches the result of a Loader for a TTL.
// Concurrent misses share one load. A failed refresh keeps serving the
// previous table; only a cold cache surfaces the error.
type Table struct {
	loader      Loader
	ttl         time.Duration
	now         func() time.Time
	loadTimeout time.Duration

	mu         sync.RWMutex
	current    *Entry
	generation uint64 // bumped by Invalidate

	sf singleflight.Group
}

// New creates a Table around loader. A non-positive ttl uses DefaultTTL.
func New(loader Loader, ttl time.Duration, opts ...Option) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Table{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Table) TTL() time.Duration { return c.ttl }

// Get returns the cached table, loading it if missing, expired or invalidated.
// The returned table is shared and must not be modified.
func (c *Table) Get(ctx context.Context) (fundamentus.TickerTable, error) {
	if e := c.fresh(); e != nil {
		return e.Table, nil
	}

	ch := c.sf.DoChan(flightKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(fundamentus.TickerTable), nil
	case <-ctx.Done():
		if e, ok := c.Snapshot(); ok {
			return e.Table, nil
		}
		return nil, ctx.Err()
	}
}

// Invalidate forces the next Get to reload regardless of age. The current
// table is kept as a fallback in case that reload fails.
func (c *Table) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()

	// a load already in flight started before the invalidation
	c.sf.Forget(flightKey)
}

// Snapshot returns the stored entry, fresh or not.
func (c *Table) Snapshot() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Entry{}, false
	}
	return *c.current, true
}

// fresh returns the current entry if it is within the TTL and not invalidated.
func (c *Table) fresh() *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.current
	if e == nil || e.generation != c.generation {
		return nil
	}
	if c.now().Sub(e.ComputedAt) >= c.ttl {
		return nil
	}
	return e
}

func (c *Table) refresh(ctx context.Context) (fundamentus.TickerTable, error) {
	// Another flight may have stored a fresh table since our check
	if e := c.fresh(); e != nil {
		return e.Table, nil
	}

	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	table, err := c.loader.Load(ctx)
	if err != nil {
		if prev, ok := c.Snapshot(); ok {
			slog.Warn("table refresh failed, serving stale data",
				"age", c.now().Sub(prev.ComputedAt),
				"error", err.Error())
			return prev.Table, nil
		}
		slog.Error("table load failed with no cached data", "error", err.Error())
		return nil, err
	}

	c.mu.Lock()
	// an older flight finishing late must not replace a newer table
	if c.current == nil || generation >= c.current.generation {
		c.current = &Entry{
			Table:      table,
			ComputedAt: c.now(),
			generation: generation,
		}
	}
	c.mu.Unlock()

	slog.Info("table refreshed", "tickers", len(table), "ttl", c.ttl)
	return table, nil
}

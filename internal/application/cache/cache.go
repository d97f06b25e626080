// Package cache implements the research de-duplication layer: a
// content-addressed, TTL-bounded cache in front of the paid research
// collaborator. A cache hit never costs money; a miss costs roughly five
// cents, so the whole point of this package is to make misses rare and
// never concurrent for the same fingerprint.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
	"golang.org/x/time/rate"
)

// Config controls cache behavior.
type Config struct {
	// TTL is how long a stored result counts as fresh. Expired entries are
	// lazily treated as misses on the next read.
	TTL time.Duration
	// MaxPerCycle bounds paid research calls per cycle. 0 = unlimited.
	MaxPerCycle int
	// FetchesPerMinute rate-limits calls to the external collaborator.
	// 0 = unlimited.
	FetchesPerMinute int
	// FetchTimeout bounds a single external research call.
	FetchTimeout time.Duration
}

// flight is one in-progress fetch. Concurrent callers for the same
// still-missing fingerprint wait on done instead of paying twice.
type flight struct {
	done   chan struct{}
	result domain.ResearchResult
	err    error
}

// Cache wraps a ResearchStore and the external Researcher with TTL reads,
// in-flight fetch coalescing, a per-cycle budget and a rate limiter.
type Cache struct {
	store      ports.ResearchStore
	researcher ports.Researcher
	cfg        Config
	limiter    *rate.Limiter
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]*flight
	used     int // paid calls this cycle
	hits     int // cache hits this cycle
}

// New creates a research cache. The store holds results across restarts;
// the researcher is only consulted on a miss.
func New(store ports.ResearchStore, researcher ports.Researcher, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 90 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.FetchesPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.FetchesPerMinute)/60.0), 1)
	}

	return &Cache{
		store:      store,
		researcher: researcher,
		cfg:        cfg,
		limiter:    limiter,
		now:        time.Now,
		inflight:   make(map[string]*flight),
	}
}

// SetClock replaces the freshness clock. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// BeginCycle resets the per-cycle budget and counters. Called by the
// orchestrator at the start of every cycle.
func (c *Cache) BeginCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used = 0
	c.hits = 0
}

// Stats returns cache hits and paid calls since the last BeginCycle.
func (c *Cache) Stats() (hits, paidCalls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.used
}

// GetOrFetch returns the research result for the query. A fresh stored
// result is returned with no external cost; otherwise at most one fetch per
// fingerprint runs at a time, and a failed fetch never poisons the entry
// (the next call retries).
func (c *Cache) GetOrFetch(ctx context.Context, query domain.ResearchQuery) (domain.ResearchResult, error) {
	fp := query.Fingerprint()

	for {
		c.mu.Lock()
		if f, ok := c.inflight[fp]; ok {
			c.mu.Unlock()
			select {
			case <-f.done:
			case <-ctx.Done():
				return domain.ResearchResult{}, ctx.Err()
			}
			if f.err == nil {
				return f.result, nil
			}
			// The fetch we piggybacked on failed. Surface the same error:
			// nothing was stored, so the next caller simply retries.
			return domain.ResearchResult{}, f.err
		}
		now := c.now()
		c.mu.Unlock()

		stored, ok, err := c.store.GetResearch(ctx, fp)
		if err != nil {
			return domain.ResearchResult{}, fmt.Errorf("cache.GetOrFetch: store read: %w", err)
		}
		if ok && stored.Fresh(now, c.cfg.TTL) {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			slog.Debug("cache: hit", "market", query.MarketID, "age", now.Sub(stored.RetrievedAt))
			return stored, nil
		}

		f, owned := c.claimFlight(fp)
		if !owned {
			// Someone claimed the fetch between our store read and now;
			// loop back and wait on their flight.
			continue
		}
		return c.fetch(ctx, query, fp, f)
	}
}

// Prune removes stored entries past the TTL window. Called on startup; not
// required for correctness since expiry is lazy, it just bounds growth.
func (c *Cache) Prune(ctx context.Context) {
	cutoff := c.now().Add(-c.cfg.TTL)
	n, err := c.store.PruneResearch(ctx, cutoff)
	if err != nil {
		slog.Warn("cache: prune failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("cache: pruned expired research", "rows", n)
	}
}

// claimFlight registers this caller as the fetcher for fp. Returns
// owned=false if another caller got there first.
func (c *Cache) claimFlight(fp string) (*flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[fp]; ok {
		return nil, false
	}
	f := &flight{done: make(chan struct{})}
	c.inflight[fp] = f
	return f, true
}

// fetch performs the paid external call and stores the result. The flight
// is always released, success or not.
func (c *Cache) fetch(ctx context.Context, query domain.ResearchQuery, fp string, f *flight) (domain.ResearchResult, error) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, fp)
		c.mu.Unlock()
		close(f.done)
	}()

	c.mu.Lock()
	if c.cfg.MaxPerCycle > 0 && c.used >= c.cfg.MaxPerCycle {
		c.mu.Unlock()
		f.err = fmt.Errorf("cache.fetch: research budget exhausted (%d/cycle): %w",
			c.cfg.MaxPerCycle, domain.ErrResearchUnavailable)
		return domain.ResearchResult{}, f.err
	}
	c.used++
	c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			f.err = fmt.Errorf("cache.fetch: rate limiter: %w", err)
			return domain.ResearchResult{}, f.err
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	slog.Info("cache: miss, fetching research", "market", query.MarketID)
	result, err := c.researcher.Research(fetchCtx, query)
	if err != nil {
		// No poisoning: nothing is stored, the next call retries.
		f.err = fmt.Errorf("cache.fetch: %w", err)
		return domain.ResearchResult{}, f.err
	}

	result.Fingerprint = fp
	result.MarketID = query.MarketID
	result.Question = query.Question
	result.RetrievedAt = c.now()

	if err := c.store.PutResearch(ctx, result); err != nil {
		// The result is still usable this cycle even if the write failed.
		slog.Warn("cache: store write failed", "market", query.MarketID, "err", err)
	}

	f.result = result
	return result, nil
}

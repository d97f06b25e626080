package domain

import (
	"fmt"
	"sync"
	"time"
)

// CapitalState is the single piece of shared mutable state in the system.
// It is owned by the order executor (sole writer, on confirmed fills) and
// read by the risk manager through immutable snapshots. All access is
// serialized by the internal mutex.
type CapitalState struct {
	mu        sync.Mutex
	total     float64
	reserved  float64
	exposure  map[string]float64 // market ID → allocated USDC
	dailyBets map[string]float64 // date (YYYY-MM-DD) → total staked that day
	now       func() time.Time
}

// NewCapitalState creates a capital ledger starting with the given total.
func NewCapitalState(total float64) *CapitalState {
	return &CapitalState{
		total:     total,
		exposure:  make(map[string]float64),
		dailyBets: make(map[string]float64),
		now:       time.Now,
	}
}

// SetClock replaces the clock used for daily stake tracking. Tests only.
func (c *CapitalState) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// CapitalSnapshot is an immutable view of the ledger for one market, taken
// under the lock. The risk manager authorizes against this snapshot, never
// against live state.
type CapitalSnapshot struct {
	Total          float64
	Reserved       float64
	MarketExposure float64 // exposure already allocated to this market
	GlobalExposure float64 // exposure allocated across all markets
	SpentToday     float64
}

// Available returns the unreserved capital in the snapshot.
func (s CapitalSnapshot) Available() float64 {
	return s.Total - s.Reserved
}

// Snapshot returns a consistent view of the ledger for the given market.
func (c *CapitalState) Snapshot(marketID string) CapitalSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var global float64
	for _, e := range c.exposure {
		global += e
	}

	return CapitalSnapshot{
		Total:          c.total,
		Reserved:       c.reserved,
		MarketExposure: c.exposure[marketID],
		GlobalExposure: global,
		SpentToday:     c.dailyBets[c.today()],
	}
}

// ApplyFill records a confirmed fill: reserves the filled amount and adds it
// to the market's exposure. The invariant reserved <= total holds before and
// after; a fill that would break it is refused.
func (c *CapitalState) ApplyFill(marketID string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("capital.ApplyFill: negative amount %.2f", amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reserved+amount > c.total {
		return fmt.Errorf("capital.ApplyFill: fill %.2f would exceed total %.2f (reserved %.2f)",
			amount, c.total, c.reserved)
	}

	c.reserved += amount
	c.exposure[marketID] += amount
	c.dailyBets[c.today()] += amount
	return nil
}

// Total returns the total capital.
func (c *CapitalState) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Reserved returns the capital locked in open positions.
func (c *CapitalState) Reserved() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reserved
}

// Available returns the capital free for new positions.
func (c *CapitalState) Available() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total - c.reserved
}

func (c *CapitalState) today() string {
	return c.now().UTC().Format("2006-01-02")
}

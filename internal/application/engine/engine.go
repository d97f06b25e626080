// Package engine drives the end-to-end decision cycle: fetch candidate
// markets, research them through the cache, score expected value, authorize
// against the risk limits, execute, and persist a summary. Cycles run one
// at a time; per-market failures become summary entries, never aborts.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/evbot/internal/application/cache"
	"github.com/alejandrodnm/evbot/internal/application/executor"
	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

// Config holds the orchestrator configuration.
type Config struct {
	Interval time.Duration
	EV       domain.EVConfig
	Risk     domain.RiskConfig
	// ResearchWorkers bounds the research/evaluate fan-out. 0 = 4.
	ResearchWorkers int
	// MemoryDepth is how many recent cycle summaries feed the research
	// context. 0 = 3.
	MemoryDepth int
	// CashFloorRatio pauses new positions when available capital drops
	// below this fraction of total. 0 = disabled.
	CashFloorRatio float64
	DryRun         bool
	RunOnce        bool
}

// Engine is the cycle orchestrator. Stateless across cycles except for the
// injected cache, capital ledger and cycle store.
type Engine struct {
	markets  ports.MarketProvider
	research *cache.Cache
	exec     *executor.Executor
	capital  *domain.CapitalState
	cycles   ports.CycleStore
	notifier ports.Notifier
	cfg      Config
	now      func() time.Time
}

// New creates an engine with all dependencies injected.
func New(
	cfg Config,
	markets ports.MarketProvider,
	research *cache.Cache,
	exec *executor.Executor,
	capital *domain.CapitalState,
	cycles ports.CycleStore,
	notifier ports.Notifier,
) *Engine {
	if cfg.ResearchWorkers <= 0 {
		cfg.ResearchWorkers = 4
	}
	if cfg.MemoryDepth <= 0 {
		cfg.MemoryDepth = 3
	}
	return &Engine{
		markets:  markets,
		research: research,
		exec:     exec,
		capital:  capital,
		cycles:   cycles,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the engine clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run executes cycles on the configured interval until the context is
// cancelled. With cfg.RunOnce it runs exactly one cycle.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"interval", e.cfg.Interval,
		"dry_run", e.cfg.DryRun,
		"once", e.cfg.RunOnce,
		"workers", e.cfg.ResearchWorkers,
	)

	if err := e.runCycle(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
		if e.cfg.RunOnce {
			return err
		}
	}
	if e.cfg.RunOnce {
		return nil
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-ticker.C:
			if err := e.runCycle(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
		}
	}
}

// runCycle runs one cycle and reports it.
func (e *Engine) runCycle(ctx context.Context) error {
	summary, err := e.RunOnce(ctx)
	if summary != nil {
		if nerr := e.notifier.NotifyCycle(ctx, summary); nerr != nil {
			slog.Warn("notifier error", "err", nerr)
		}
	}
	return err
}

// RunOnce executes exactly one cycle and returns its summary. The summary
// is always produced and persisted, even when every market was skipped;
// only a cycle-store write failure is fatal (without durable bookkeeping
// the capital invariants cannot be trusted across restarts).
func (e *Engine) RunOnce(ctx context.Context) (*domain.CycleSummary, error) {
	start := e.now()
	summary := &domain.CycleSummary{
		CycleID:   uuid.New().String(),
		StartedAt: start,
		DryRun:    e.cfg.DryRun,
	}

	e.research.BeginCycle()

	contextNotes := e.loadContext(ctx)

	markets, err := e.markets.ListCandidateMarkets(ctx)
	if err != nil {
		summary.Notes = fmt.Sprintf("market fetch failed: %v", err)
		slog.Warn("engine: market fetch failed, empty cycle", "err", err)
		return e.finishCycle(ctx, summary)
	}
	summary.MarketsSeen = len(markets)

	// Liquidity guard: with too much capital locked in positions, stop
	// opening new ones and wait for settlements.
	if paused, note := e.tradingPaused(); paused {
		summary.TradingPaused = true
		summary.Notes = note
		slog.Info("engine: trading paused", "reason", note)
		return e.finishCycle(ctx, summary)
	}

	scored := e.scoreMarkets(ctx, markets, contextNotes)

	// Deterministic execution order: best EV first, market ID breaks ties.
	// Markets competing for the same remaining capital are resolved by this
	// ordering, not by fetch order.
	var tradeable []scoredMarket
	for _, sm := range scored {
		if sm.skip != "" {
			summary.Entries = append(summary.Entries, domain.CycleEntry{
				MarketID: sm.market.ID,
				Question: sm.market.Question,
				Outcome:  domain.OutcomeSkipped,
				Reason:   sm.skip,
				EV:       sm.ev.ExpectedValue,
			})
			continue
		}
		tradeable = append(tradeable, sm)
	}
	sort.Slice(tradeable, func(i, j int) bool {
		if tradeable[i].ev.ExpectedValue != tradeable[j].ev.ExpectedValue {
			return tradeable[i].ev.ExpectedValue > tradeable[j].ev.ExpectedValue
		}
		return tradeable[i].market.ID < tradeable[j].market.ID
	})

	for _, sm := range tradeable {
		if ctx.Err() != nil {
			// Cycle cancelled: abandon markets not yet submitted. Anything
			// already submitted was resolved inside the executor.
			summary.Notes = "cycle cancelled mid-flight"
			break
		}
		summary.Entries = append(summary.Entries, e.tradeOne(ctx, sm, summary.CycleID))
	}

	return e.finishCycle(ctx, summary)
}

// scoredMarket pairs a market with its research-derived EV, or the reason
// it was skipped.
type scoredMarket struct {
	market   domain.Market
	research domain.ResearchResult
	ev       domain.EVResult
	skip     string
}

// tradeOne takes one scored market through authorize → execute.
func (e *Engine) tradeOne(ctx context.Context, sm scoredMarket, cycleID string) domain.CycleEntry {
	entry := domain.CycleEntry{
		MarketID:  sm.market.ID,
		Question:  sm.market.Question,
		Direction: sm.ev.Direction,
		EV:        sm.ev.ExpectedValue,
	}

	proposal := domain.TradeProposal{
		Market:    sm.market,
		Research:  sm.research,
		EV:        sm.ev,
		Direction: sm.ev.Direction,
		Stake:     sm.ev.SuggestedStake,
	}

	key := domain.OrderKey(sm.market.ID, cycleID)
	order, rejection := domain.Authorize(proposal, e.capital.Snapshot(sm.market.ID), e.cfg.Risk, key)
	if rejection != domain.RejectionNone {
		entry.Outcome = domain.OutcomeRejected
		entry.Reason = string(rejection)
		entry.Stake = proposal.Stake
		slog.Info("engine: risk rejection",
			"market", domain.TruncateQuestion(sm.market.Question, sm.market.ID, 50),
			"reason", rejection,
		)
		return entry
	}

	entry.Stake = order.Stake
	fill, err := e.exec.Submit(ctx, order)
	if err != nil {
		entry.Outcome = domain.OutcomeFailed
		entry.Reason = err.Error()
		return entry
	}

	entry.Filled = fill.FilledAmount
	if fill.Status == domain.OrderStatusPartial {
		entry.Outcome = domain.OutcomePartial
	} else {
		entry.Outcome = domain.OutcomeExecuted
	}
	return entry
}

// finishCycle stamps the summary, persists it and logs the outcome. The
// append is the only fatal failure in a cycle. Persistence runs on a
// detached context: once an order has executed, the durable record must
// land even if the cycle itself was cancelled mid-flight.
func (e *Engine) finishCycle(ctx context.Context, summary *domain.CycleSummary) (*domain.CycleSummary, error) {
	summary.FinishedAt = e.now()
	summary.CacheHits, summary.ResearchCalls = e.research.Stats()
	summary.Capital = domain.CapitalTotals{
		Total:    e.capital.Total(),
		Reserved: e.capital.Reserved(),
	}

	if err := e.cycles.AppendCycle(context.WithoutCancel(ctx), *summary); err != nil {
		return summary, fmt.Errorf("engine.RunOnce: persist summary: %w", err)
	}

	slog.Info("engine: cycle complete",
		"cycle", summary.CycleID[:8],
		"markets", summary.MarketsSeen,
		"executed", summary.CountByOutcome(domain.OutcomeExecuted)+summary.CountByOutcome(domain.OutcomePartial),
		"rejected", summary.CountByOutcome(domain.OutcomeRejected),
		"skipped", summary.CountByOutcome(domain.OutcomeSkipped),
		"research_calls", summary.ResearchCalls,
		"cache_hits", summary.CacheHits,
		"took", summary.FinishedAt.Sub(summary.StartedAt).Truncate(time.Millisecond),
	)
	return summary, nil
}

// loadContext renders recent cycle summaries as continuity notes for the
// researcher. Memory never reaches the risk math.
func (e *Engine) loadContext(ctx context.Context) []string {
	recent, err := e.cycles.RecentCycles(ctx, e.cfg.MemoryDepth)
	if err != nil {
		slog.Warn("engine: could not load cycle history", "err", err)
		return nil
	}
	notes := make([]string, 0, len(recent))
	for _, s := range recent {
		notes = append(notes, s.ContextLine())
	}
	return notes
}

// tradingPaused applies the liquidity guard: available capital below the
// floor ratio of total means new positions wait for settlements.
func (e *Engine) tradingPaused() (bool, string) {
	total := e.capital.Total()
	if total <= 0 {
		return true, "no capital"
	}
	available := e.capital.Available()
	floor := e.cfg.CashFloorRatio * total
	if e.cfg.CashFloorRatio > 0 && available < floor {
		return true, fmt.Sprintf("available $%.2f below cash floor $%.2f, waiting for settlements",
			available, floor)
	}
	return false, ""
}

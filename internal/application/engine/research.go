package engine

// research.go — worker pool for the research/evaluate fan-out.
//
// Researching markets is network-bound (the collaborator can take tens of
// seconds per call), so the cycle fans out with a bounded pool. Everything
// past this phase — authorize and execute — stays strictly sequential: the
// capital ledger is single-writer.

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/evbot/internal/domain"
)

const (
	skipNoResearch    = "research unavailable"
	skipUntradeable   = "untradeable market"
	skipNegativeEV    = "expected value <= 0"
	skipBelowMinimums = "edge or confidence below minimum"
)

// scoreMarkets researches and evaluates every market concurrently. The
// result preserves no particular order; the caller sorts. Per-market
// failures are folded into the skip reason, never propagated.
func (e *Engine) scoreMarkets(ctx context.Context, markets []domain.Market, contextNotes []string) []scoredMarket {
	workCh := make(chan domain.Market, len(markets))
	resultCh := make(chan scoredMarket, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.ResearchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range workCh {
				resultCh <- e.scoreOne(ctx, m, contextNotes)
			}
		}()
	}

	for _, m := range markets {
		workCh <- m
	}
	close(workCh)
	wg.Wait()
	close(resultCh)

	scored := make([]scoredMarket, 0, len(markets))
	for sm := range resultCh {
		scored = append(scored, sm)
	}
	return scored
}

// scoreOne runs research → evaluate for a single market.
func (e *Engine) scoreOne(ctx context.Context, m domain.Market, contextNotes []string) scoredMarket {
	sm := scoredMarket{market: m}

	// Un precio en el extremo o un book sin liquidez no deja edge explotable:
	// ni gastamos la llamada de research.
	if m.PriceExtreme() || m.Liquidity <= 0 {
		sm.ev = domain.EVResult{ExpectedValue: domain.EVUntradeable, Untradeable: true}
		sm.skip = skipUntradeable
		return sm
	}

	query := domain.ResearchQuery{
		MarketID:     m.ID,
		Question:     m.Question,
		ContextNotes: contextNotes,
	}

	research, err := e.research.GetOrFetch(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrResearchUnavailable) && ctx.Err() == nil {
			slog.Warn("engine: research error", "market", m.ID, "err", err)
		}
		sm.skip = skipNoResearch
		return sm
	}
	sm.research = research

	sm.ev = domain.EvaluateEV(m.Price, research.Probability, research.Confidence, m.Liquidity, e.cfg.EV)
	switch {
	case sm.ev.Untradeable:
		sm.skip = skipUntradeable
	case sm.ev.ExpectedValue <= 0:
		sm.skip = skipNegativeEV
	case sm.ev.SuggestedStake <= 0:
		sm.skip = skipBelowMinimums
	}
	return sm
}

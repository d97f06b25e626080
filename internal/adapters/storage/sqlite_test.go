package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/evbot/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResearch(fp string, at time.Time) domain.ResearchResult {
	return domain.ResearchResult{
		Fingerprint: fp,
		MarketID:    "mkt-1",
		Question:    "Will BTC reach $200k?",
		Summary:     "momentum is strong but macro is uncertain",
		Probability: 0.62,
		Confidence:  0.75,
		KeyFactors:  []string{"ETF inflows", "halving cycle", "rate cuts"},
		Sources:     []string{"https://example.com/a", "https://example.com/b"},
		RetrievedAt: at,
	}
}

func TestResearch_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutResearch(ctx, sampleResearch("fp-1", at)))

	got, ok, err := s.GetResearch(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mkt-1", got.MarketID)
	assert.Equal(t, 0.62, got.Probability)
	assert.Equal(t, []string{"ETF inflows", "halving cycle", "rate cuts"}, got.KeyFactors)
	assert.Len(t, got.Sources, 2)
	assert.True(t, got.RetrievedAt.Equal(at))
}

func TestResearch_MissingFingerprint(t *testing.T) {
	s := newTestStorage(t)
	_, ok, err := s.GetResearch(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResearch_UpsertReplacesRow(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutResearch(ctx, sampleResearch("fp-1", at)))

	updated := sampleResearch("fp-1", at.Add(time.Hour))
	updated.Probability = 0.70
	require.NoError(t, s.PutResearch(ctx, updated))

	got, ok, err := s.GetResearch(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.70, got.Probability)
	assert.True(t, got.RetrievedAt.Equal(at.Add(time.Hour)))
}

func TestResearch_Prune(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := sampleResearch("fp-old", now.Add(-48*time.Hour))
	fresh := sampleResearch("fp-fresh", now.Add(-time.Hour))
	require.NoError(t, s.PutResearch(ctx, old))
	require.NoError(t, s.PutResearch(ctx, fresh))

	n, err := s.PruneResearch(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, _ := s.GetResearch(ctx, "fp-old")
	assert.False(t, ok)
	_, ok, _ = s.GetResearch(ctx, "fp-fresh")
	assert.True(t, ok)
}

func sampleCycle(id string, at time.Time) domain.CycleSummary {
	return domain.CycleSummary{
		CycleID:       id,
		StartedAt:     at,
		FinishedAt:    at.Add(time.Minute),
		MarketsSeen:   3,
		ResearchCalls: 2,
		CacheHits:     1,
		Entries: []domain.CycleEntry{
			{
				MarketID:  "mkt-1",
				Question:  "Will it happen?",
				Outcome:   domain.OutcomeExecuted,
				Direction: domain.DirectionYes,
				Stake:     50,
				Filled:    50,
				EV:        0.28,
			},
			{
				MarketID: "mkt-2",
				Outcome:  domain.OutcomeSkipped,
				Reason:   "expected value <= 0",
			},
		},
		Capital: domain.CapitalTotals{Total: 1000, Reserved: 50},
	}
}

func TestCycles_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendCycle(ctx, sampleCycle("cycle-1", at)))

	got, err := s.RecentCycles(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "cycle-1", c.CycleID)
	assert.Equal(t, 3, c.MarketsSeen)
	require.Len(t, c.Entries, 2)
	assert.Equal(t, domain.OutcomeExecuted, c.Entries[0].Outcome)
	assert.Equal(t, 50.0, c.Entries[0].Filled)
	assert.Equal(t, 1000.0, c.Capital.Total)
}

func TestCycles_RecentOrderingNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"cycle-1", "cycle-2", "cycle-3"} {
		require.NoError(t, s.AppendCycle(ctx, sampleCycle(id, base.Add(time.Duration(i)*time.Hour))))
	}

	got, err := s.RecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cycle-3", got[0].CycleID)
	assert.Equal(t, "cycle-2", got[1].CycleID)
}

func TestCycles_RecentZeroOrEmpty(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	got, err := s.RecentCycles(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.RecentCycles(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

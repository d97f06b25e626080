package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_StableAcrossCosmeticChanges(t *testing.T) {
	a := ResearchQuery{MarketID: "mkt-1", Question: "Will BTC reach $200k?"}
	b := ResearchQuery{MarketID: "mkt-1", Question: "  will btc  reach $200k?  "}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_IgnoresFocusAndContext(t *testing.T) {
	a := ResearchQuery{MarketID: "mkt-1", Question: "Will BTC reach $200k?"}
	b := ResearchQuery{
		MarketID:     "mkt-1",
		Question:     "Will BTC reach $200k?",
		Focus:        "institutional adoption",
		ContextNotes: []string{"previous cycle executed 2 trades"},
	}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_DistinctMarkets(t *testing.T) {
	a := ResearchQuery{MarketID: "mkt-1", Question: "Same question"}
	b := ResearchQuery{MarketID: "mkt-2", Question: "Same question"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "will it rain?", NormalizeQuestion("  Will   IT\train?\n"))
}

func TestResearchResult_Fresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := ResearchResult{RetrievedAt: now.Add(-23 * time.Hour)}
	assert.True(t, r.Fresh(now, 24*time.Hour))

	stale := ResearchResult{RetrievedAt: now.Add(-25 * time.Hour)}
	assert.False(t, stale.Fresh(now, 24*time.Hour))
}

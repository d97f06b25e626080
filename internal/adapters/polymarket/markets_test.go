package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFilter() MarketFilter {
	return MarketFilter{
		Limit:              20,
		MinLiquidity:       5000,
		MinPrice:           0.20,
		MaxPrice:           0.80,
		ExcludedCategories: []string{"sports"},
	}
}

func sampleEvent() gammaEvent {
	return gammaEvent{
		ID:        "evt-1",
		Title:     "Will BTC reach $200k by 2027?",
		Slug:      "btc-200k",
		EndDate:   "2027-01-01T00:00:00Z",
		Liquidity: json.Number("25000"),
		Volume24h: json.Number("4200.5"),
		Tags:      []gammaTag{{Slug: "crypto"}},
		Markets: []gammaMarket{{
			ID:            "mkt-1",
			Active:        true,
			OutcomePrices: `["0.45", "0.55"]`,
		}},
	}
}

func TestMapEvent_Passes(t *testing.T) {
	p := NewMarketProvider(nil, testFilter())

	m, ok := p.mapEvent(sampleEvent())
	require.True(t, ok)
	assert.Equal(t, "evt-1", m.ID)
	assert.Equal(t, "crypto", m.Category)
	assert.Equal(t, 0.45, m.Price)
	assert.Equal(t, 25000.0, m.Liquidity)
	assert.Equal(t, 4200.5, m.Volume24h)
}

func TestMapEvent_FiltersLowLiquidity(t *testing.T) {
	p := NewMarketProvider(nil, testFilter())
	ev := sampleEvent()
	ev.Liquidity = json.Number("1000")

	_, ok := p.mapEvent(ev)
	assert.False(t, ok)
}

func TestMapEvent_FiltersExcludedCategory(t *testing.T) {
	p := NewMarketProvider(nil, testFilter())
	ev := sampleEvent()
	ev.Tags = append(ev.Tags, gammaTag{Slug: "Sports"}) // case-insensitive

	_, ok := p.mapEvent(ev)
	assert.False(t, ok)
}

func TestMapEvent_FiltersExtremePrices(t *testing.T) {
	p := NewMarketProvider(nil, testFilter())

	for _, prices := range []string{`["0.05", "0.95"]`, `["0.92", "0.08"]`} {
		ev := sampleEvent()
		ev.Markets[0].OutcomePrices = prices
		_, ok := p.mapEvent(ev)
		assert.False(t, ok, "prices %s", prices)
	}
}

func TestMapEvent_FiltersClosedOrInactive(t *testing.T) {
	p := NewMarketProvider(nil, testFilter())

	ev := sampleEvent()
	ev.Closed = true
	_, ok := p.mapEvent(ev)
	assert.False(t, ok)

	ev = sampleEvent()
	ev.Markets[0].Active = false
	_, ok = p.mapEvent(ev)
	assert.False(t, ok)
}

func TestMapEvent_FiltersNearResolution(t *testing.T) {
	filter := testFilter()
	filter.MinHoursToResolve = 24
	p := NewMarketProvider(nil, filter)

	ev := sampleEvent()
	ev.EndDate = time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)
	_, ok := p.mapEvent(ev)
	assert.False(t, ok)
}

func TestParseYesPrice(t *testing.T) {
	assert.Equal(t, 0.45, parseYesPrice(`["0.45", "0.55"]`))
	assert.Equal(t, 0.0, parseYesPrice(""))
	assert.Equal(t, 0.0, parseYesPrice("not json"))
	assert.Equal(t, 0.0, parseYesPrice("[]"))
}

func TestParseEndDate_BothFormats(t *testing.T) {
	full := parseEndDate("2027-01-01T12:30:00Z")
	assert.Equal(t, 2027, full.Year())
	assert.Equal(t, 12, full.Hour())

	short := parseEndDate("2027-01-01")
	assert.Equal(t, 2027, short.Year())

	assert.True(t, parseEndDate("").IsZero())
	assert.True(t, parseEndDate("garbage").IsZero())
}

func TestPrimaryCategory(t *testing.T) {
	assert.Equal(t, "crypto", primaryCategory([]gammaTag{{Slug: "Weekly"}, {Slug: "Crypto"}}))
	assert.Equal(t, "other", primaryCategory([]gammaTag{{Slug: "weird-tag"}}))
	assert.Equal(t, "other", primaryCategory(nil))
}

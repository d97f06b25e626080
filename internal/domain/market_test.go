package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarket_HoursToResolution(t *testing.T) {
	m := Market{EndDate: time.Now().Add(48 * time.Hour)}
	assert.InDelta(t, 48.0, m.HoursToResolution(), 0.1)

	// Sin EndDate o ya resuelto: 0, nunca negativo.
	assert.Equal(t, 0.0, Market{}.HoursToResolution())
	past := Market{EndDate: time.Now().Add(-time.Hour)}
	assert.Equal(t, 0.0, past.HoursToResolution())
}

func TestMarket_PriceExtreme(t *testing.T) {
	assert.True(t, Market{Price: 0}.PriceExtreme())
	assert.True(t, Market{Price: 1}.PriceExtreme())
	assert.False(t, Market{Price: 0.5}.PriceExtreme())
	assert.False(t, Market{Price: 0.01}.PriceExtreme())
}

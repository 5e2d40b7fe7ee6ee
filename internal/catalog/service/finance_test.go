package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/catalog/model"
)

func TestTotalCostDefaultCommission(t *testing.T) {
	it := model.Item{BaseCost: 100, Commission: NormalizeCommission(0)}
	Derive(&it)

	require.Equal(t, 17.0, it.Commission)
	assert.InDelta(t, 204.82, it.TotalCost, 0.005)
	m10, ok := it.Markup.At(10)
	require.True(t, ok)
	assert.InDelta(t, 225.30, m10, 0.005)
	m100, _ := it.Markup.At(100)
	assert.InDelta(t, 2*it.TotalCost, m100, 1e-9)
}

func TestNormalizeCommission(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.17, 17},
		{0, 17},
		{45, 45},
		{1, 1},
		{0.5, 50},
		{math.NaN(), 17},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, NormalizeCommission(c.in), 1e-9, "in=%v", c.in)
	}
}

func TestMarkupLadderMonotonic(t *testing.T) {
	for _, base := range []float64{0, 1, 99.99, 1500} {
		it := model.Item{BaseCost: base, Commission: 12}
		Derive(&it)
		for i := 1; i < len(it.Markup); i++ {
			assert.Greater(t, it.Markup[i], it.Markup[i-1])
		}
		assert.Greater(t, it.Markup[0], it.TotalCost)
	}
}

func TestTotalCostDegenerateCommission(t *testing.T) {
	assert.Zero(t, TotalCost(100, 100))
	assert.Zero(t, TotalCost(100, 150))
	assert.InDelta(t, 70.0, TotalCost(0, 0), 1e-9)
}

func TestSetCommissionRecomputesEverything(t *testing.T) {
	it := model.Item{BaseCost: 200, Commission: 17}
	Derive(&it)
	before := it

	SetCommission(&it, 30)
	assert.Equal(t, 30.0, it.Commission)
	assert.InDelta(t, 270/0.7, it.TotalCost, 1e-9)
	for i, pct := range model.MarkupTiers {
		assert.NotEqual(t, before.Markup[i], it.Markup[i])
		assert.InDelta(t, it.TotalCost*(1+float64(pct)/100), it.Markup[i], 1e-9)
	}
}

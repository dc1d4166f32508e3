package profiler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFavorableDelta_SymmetryLaw(t *testing.T) {
	p0 := decimal.NewFromFloat(0.50)
	p1 := decimal.NewFromFloat(0.53)

	sellDelta := FavorableDelta("sell", p0, p1)
	mirrored := p0.Mul(decimal.NewFromInt(2)).Sub(p1)
	buyDelta := FavorableDelta("buy", p0, mirrored)

	assert.True(t, sellDelta.Equal(buyDelta), "sell=%s buy=%s", sellDelta, buyDelta)
}

func TestIsFavorableMove_Threshold(t *testing.T) {
	p0 := decimal.NewFromFloat(0.50)
	threshold := decimal.NewFromFloat(0.05)

	assert.True(t, IsFavorableMove("buy", p0, decimal.NewFromFloat(0.56), threshold))
	assert.False(t, IsFavorableMove("buy", p0, decimal.NewFromFloat(0.52), threshold))
	assert.True(t, IsFavorableMove("sell", p0, decimal.NewFromFloat(0.44), threshold))
}

func TestComputeAccuracyScore_NullBelowMinEvaluated(t *testing.T) {
	score := ComputeAccuracyScore(4, 2, 2, 2, 5)
	assert.False(t, score.Valid)
}

func TestComputeAccuracyScore_WeightedFormula(t *testing.T) {
	// 10 evaluated: 6 correct at 15m, 7 at 1h, 8 at 4h.
	score := ComputeAccuracyScore(10, 6, 7, 8, 5)
	expected := decimal.NewFromFloat(0.2).Mul(decimal.NewFromFloat(0.6)).
		Add(decimal.NewFromFloat(0.3).Mul(decimal.NewFromFloat(0.7))).
		Add(decimal.NewFromFloat(0.5).Mul(decimal.NewFromFloat(0.8)))
	assert.True(t, score.Valid)
	assert.True(t, score.Decimal.Sub(expected).Abs().LessThan(decimal.NewFromFloat(0.0001)))
}

func TestWalletAggregate_StreakTracking(t *testing.T) {
	agg := NewWalletAggregate()
	notional := decimal.NewFromInt(200)

	correct := map[string]HorizonOutcome{
		"15m": {Evaluated: true, Correct: true, Delta: decimal.NewFromFloat(0.1)},
		"1h":  {Evaluated: true, Correct: true, Delta: decimal.NewFromFloat(0.1)},
		"4h":  {Evaluated: true, Correct: true, Delta: decimal.NewFromFloat(0.1)},
	}
	incorrect := map[string]HorizonOutcome{
		"15m": {Evaluated: true, Correct: false, Delta: decimal.NewFromFloat(0.0)},
		"1h":  {Evaluated: true, Correct: false, Delta: decimal.NewFromFloat(0.0)},
		"4h":  {Evaluated: true, Correct: false, Delta: decimal.NewFromFloat(0.0)},
	}

	agg.Add(notional, correct)
	agg.Add(notional, correct)
	agg.Add(notional, incorrect)
	agg.Add(notional, correct)

	assert.Equal(t, 4, agg.EvaluatedTrades)
	assert.Equal(t, 3, agg.Correct4h)
	assert.Equal(t, 1, agg.CurrentStreak())
	assert.Equal(t, 2, agg.BestStreak())
}

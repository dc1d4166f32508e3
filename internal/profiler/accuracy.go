// Package profiler retroactively scores trades against later price
// observations and maintains the per-wallet accuracy record the
// signal engine's EARLY_POSITIONING detector reads.
package profiler

import (
	"time"

	"github.com/shopspring/decimal"
)

// Horizon is one of the three lookahead windows a trade is scored at.
type Horizon struct {
	Name   string
	Offset time.Duration
	Weight decimal.Decimal
}

var (
	Horizon15m = Horizon{Name: "15m", Offset: 15 * time.Minute, Weight: decimal.NewFromFloat(0.2)}
	Horizon1h  = Horizon{Name: "1h", Offset: time.Hour, Weight: decimal.NewFromFloat(0.3)}
	Horizon4h  = Horizon{Name: "4h", Offset: 4 * time.Hour, Weight: decimal.NewFromFloat(0.5)}

	Horizons = []Horizon{Horizon15m, Horizon1h, Horizon4h}
)

// FavorableDelta is the price move in the direction that would profit
// the trade's side: for buy, later minus entry; for sell, entry minus
// later.
func FavorableDelta(side string, entryPrice, laterPrice decimal.Decimal) decimal.Decimal {
	if side == "sell" {
		return entryPrice.Sub(laterPrice)
	}
	return laterPrice.Sub(entryPrice)
}

// IsFavorableMove reports whether the move at or beyond threshold
// counts as "correct" for the trade's side.
func IsFavorableMove(side string, entryPrice, laterPrice, threshold decimal.Decimal) bool {
	return FavorableDelta(side, entryPrice, laterPrice).GreaterThanOrEqual(threshold)
}

// HorizonOutcome is one trade's scored result at one horizon.
type HorizonOutcome struct {
	Evaluated bool
	Correct   bool
	Delta     decimal.Decimal
}

// WalletAggregate accumulates one wallet's scored trades across a
// profiler pass before being written to WalletStats.
type WalletAggregate struct {
	TotalTrades     int
	EvaluatedTrades int

	Correct15m int
	Correct1h  int
	Correct4h  int

	SumDeltaWhenCorrect4h decimal.Decimal
	TotalNotional         decimal.Decimal

	currentStreak int
	bestStreak    int
}

// NewWalletAggregate returns a zeroed aggregate ready to accumulate.
func NewWalletAggregate() *WalletAggregate {
	return &WalletAggregate{
		SumDeltaWhenCorrect4h: decimal.Zero,
		TotalNotional:         decimal.Zero,
	}
}

// Add folds one trade's scored outcomes into the aggregate. The only
// evaluation gate is the notional filter, applied before a trade ever
// reaches here; a horizon with no price observation simply counts as
// not correct at that horizon. Trades must be added in chronological
// order for the streak to be correct.
func (a *WalletAggregate) Add(notional decimal.Decimal, outcomes map[string]HorizonOutcome) {
	a.TotalTrades++
	a.EvaluatedTrades++
	a.TotalNotional = a.TotalNotional.Add(notional)

	if o15, ok := outcomes[Horizon15m.Name]; ok && o15.Evaluated && o15.Correct {
		a.Correct15m++
	}
	if o1h, ok := outcomes[Horizon1h.Name]; ok && o1h.Evaluated && o1h.Correct {
		a.Correct1h++
	}
	o4h, ok := outcomes[Horizon4h.Name]
	if ok && o4h.Evaluated && o4h.Correct {
		a.Correct4h++
		a.SumDeltaWhenCorrect4h = a.SumDeltaWhenCorrect4h.Add(o4h.Delta)
		a.currentStreak++
		if a.currentStreak > a.bestStreak {
			a.bestStreak = a.currentStreak
		}
	} else {
		a.currentStreak = 0
	}
}

func (a *WalletAggregate) CurrentStreak() int { return a.currentStreak }
func (a *WalletAggregate) BestStreak() int    { return a.bestStreak }

// ComputeAccuracyScore returns the weighted accuracy in [0,1], or an
// invalid NullDecimal when fewer than minEvaluated trades were scored.
func ComputeAccuracyScore(evaluated, correct15m, correct1h, correct4h, minEvaluated int) decimal.NullDecimal {
	if evaluated < minEvaluated {
		return decimal.NullDecimal{}
	}
	e := decimal.NewFromInt(int64(evaluated))
	p15 := decimal.NewFromInt(int64(correct15m)).Div(e)
	p1h := decimal.NewFromInt(int64(correct1h)).Div(e)
	p4h := decimal.NewFromInt(int64(correct4h)).Div(e)

	score := Horizon15m.Weight.Mul(p15).Add(Horizon1h.Weight.Mul(p1h)).Add(Horizon4h.Weight.Mul(p4h))
	return decimal.NewNullDecimal(score)
}

// AvgDeltaWhenCorrect returns the mean favorable delta among 4h-correct
// trades, or an invalid NullDecimal when none were correct.
func AvgDeltaWhenCorrect(sumDelta decimal.Decimal, correct4h int) decimal.NullDecimal {
	if correct4h == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(sumDelta.Div(decimal.NewFromInt(int64(correct4h))))
}

// Package scoring groups recent signal events by (market, side) into a
// single weighted score and watch/high status, as a pure function over
// an in-memory signal slice.
package scoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusHigh  = "high"
	StatusWatch = "watch"
)

// SignalInput is the minimal shape the aggregator needs from a
// SignalEvent.
type SignalInput struct {
	MarketID      uint64
	Side          string
	SignalType    string
	Severity      string
	WalletAddress string
	ObservedAt    time.Time
}

// Weights gives every tunable the aggregation formula needs.
type Weights struct {
	BySignalType       map[string]decimal.Decimal
	SeverityMultiplier map[string]decimal.Decimal
	BonusPerExtraType  decimal.Decimal
	HighThreshold      decimal.Decimal
	WatchThreshold     decimal.Decimal
}

// DefaultWeights returns the weighting scheme the component design
// specifies.
func DefaultWeights(bonusPerExtraType, highThreshold, watchThreshold decimal.Decimal) Weights {
	return Weights{
		BySignalType: map[string]decimal.Decimal{
			"FRESH_WALLET_BIG_SIZE":        decimal.NewFromFloat(5),
			"LOW_ACTIVITY_WALLET_BIG_SIZE": decimal.NewFromFloat(3),
			"REPEAT_ENTRIES":               decimal.NewFromFloat(2),
			"THIN_MARKET_IMPACT":           decimal.NewFromFloat(4),
			"CLUSTERING":                   decimal.NewFromFloat(3.5),
			"EARLY_POSITIONING":            decimal.NewFromFloat(6),
		},
		SeverityMultiplier: map[string]decimal.Decimal{
			"high":   decimal.NewFromFloat(2),
			"medium": decimal.NewFromFloat(1),
			"low":    decimal.NewFromFloat(0.5),
		},
		BonusPerExtraType: bonusPerExtraType,
		HighThreshold:     highThreshold,
		WatchThreshold:    watchThreshold,
	}
}

// GroupResult is one (market, side) group's aggregated outcome. Groups
// that don't cross WatchThreshold are not returned by Aggregate.
type GroupResult struct {
	MarketID       uint64
	Side           string
	Score          decimal.Decimal
	Status         string
	CountsBySignal map[string]int
	DistinctTypes  int
	ExampleWallets []string
	Examples       []SignalInput
	WindowHours    float64
}

type groupKey struct {
	marketID uint64
	side     string
}

// Aggregate groups signals by (market, side), scores each group, and
// returns only the groups that cross WatchThreshold. Running Aggregate
// twice on the same input yields identical GroupResult values — the
// idempotence law the scoring worker's upsert depends on.
func Aggregate(signalsIn []SignalInput, w Weights, windowHours float64) []GroupResult {
	groups := make(map[groupKey][]SignalInput)
	var order []groupKey
	for _, s := range signalsIn {
		k := groupKey{marketID: s.MarketID, side: s.Side}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].marketID != order[j].marketID {
			return order[i].marketID < order[j].marketID
		}
		return order[i].side < order[j].side
	})

	var out []GroupResult
	for _, k := range order {
		members := groups[k]
		result := scoreGroup(k, members, w, windowHours)
		if result.Status == "" {
			continue
		}
		out = append(out, result)
	}
	return out
}

func scoreGroup(k groupKey, members []SignalInput, w Weights, windowHours float64) GroupResult {
	base := decimal.Zero
	counts := make(map[string]int)
	typesSeen := make(map[string]bool)

	one := decimal.NewFromInt(1)
	for _, m := range members {
		weight, ok := w.BySignalType[m.SignalType]
		if !ok {
			weight = one
		}
		mult, ok := w.SeverityMultiplier[m.Severity]
		if !ok {
			mult = one
		}
		base = base.Add(weight.Mul(mult))
		counts[m.SignalType]++
		typesSeen[m.SignalType] = true
	}

	distinctTypes := len(typesSeen)
	extra := distinctTypes - 1
	if extra < 0 {
		extra = 0
	}
	bonus := w.BonusPerExtraType.Mul(decimal.NewFromInt(int64(extra)))
	score := base.Add(bonus)

	status := ""
	switch {
	case score.GreaterThanOrEqual(w.HighThreshold):
		status = StatusHigh
	case score.GreaterThanOrEqual(w.WatchThreshold):
		status = StatusWatch
	}

	sorted := make([]SignalInput, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ObservedAt.Before(sorted[j].ObservedAt) })

	var wallets []string
	seen := make(map[string]bool)
	for _, m := range sorted {
		if m.WalletAddress == "" || seen[m.WalletAddress] {
			continue
		}
		seen[m.WalletAddress] = true
		wallets = append(wallets, m.WalletAddress)
		if len(wallets) == 5 {
			break
		}
	}

	examples := sorted
	if len(examples) > 5 {
		examples = examples[:5]
	}

	return GroupResult{
		MarketID:       k.marketID,
		Side:           k.side,
		Score:          score,
		Status:         status,
		CountsBySignal: counts,
		DistinctTypes:  distinctTypes,
		ExampleWallets: wallets,
		Examples:       examples,
		WindowHours:    windowHours,
	}
}

package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_ScoringUpsertScenario(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := DefaultWeights(decimal.NewFromFloat(2.5), decimal.NewFromFloat(12), decimal.NewFromFloat(4))

	signals := []SignalInput{
		{MarketID: 1, Side: "buy", SignalType: "FRESH_WALLET_BIG_SIZE", Severity: "high", WalletAddress: "w1", ObservedAt: base},
		{MarketID: 1, Side: "buy", SignalType: "FRESH_WALLET_BIG_SIZE", Severity: "high", WalletAddress: "w2", ObservedAt: base.Add(time.Minute)},
		{MarketID: 1, Side: "buy", SignalType: "CLUSTERING", Severity: "medium", WalletAddress: "w3", ObservedAt: base.Add(2 * time.Minute)},
	}

	results := Aggregate(signals, w, 2)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, uint64(1), r.MarketID)
	assert.Equal(t, "buy", r.Side)
	assert.Equal(t, StatusHigh, r.Status)
	assert.True(t, r.Score.Equal(decimal.NewFromFloat(26.0)), "score=%s", r.Score)
	assert.Equal(t, 2, r.DistinctTypes)
}

func TestAggregate_Idempotence(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := DefaultWeights(decimal.NewFromFloat(2.5), decimal.NewFromFloat(12), decimal.NewFromFloat(4))
	signals := []SignalInput{
		{MarketID: 1, Side: "buy", SignalType: "FRESH_WALLET_BIG_SIZE", Severity: "high", WalletAddress: "w1", ObservedAt: base},
		{MarketID: 1, Side: "buy", SignalType: "CLUSTERING", Severity: "medium", WalletAddress: "w2", ObservedAt: base.Add(time.Minute)},
	}

	first := Aggregate(signals, w, 2)
	second := Aggregate(signals, w, 2)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.True(t, first[i].Score.Equal(second[i].Score))
	}
}

func TestAggregate_DropsGroupsBelowWatchThreshold(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := DefaultWeights(decimal.NewFromFloat(2.5), decimal.NewFromFloat(12), decimal.NewFromFloat(4))
	signals := []SignalInput{
		{MarketID: 2, Side: "sell", SignalType: "REPEAT_ENTRIES", Severity: "low", WalletAddress: "w1", ObservedAt: base},
	}

	results := Aggregate(signals, w, 2)

	assert.Empty(t, results)
}

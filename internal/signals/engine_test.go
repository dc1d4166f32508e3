package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		BigNotional:                 decimal.NewFromInt(1000),
		LowActivityMaxTrades:        2,
		RepeatWindow:                10 * time.Minute,
		RepeatMinCount:              3,
		ImpactDeviation:             decimal.NewFromFloat(0.05),
		ImpactMinNotional:           decimal.NewFromInt(500),
		ClusterWindow:               5 * time.Minute,
		ClusterMinWallets:           3,
		ClusterMinNotionalPerWallet: decimal.NewFromInt(200),
		SmartWalletMinAccuracy:      decimal.NewFromFloat(0.60),
		SmartWalletMinTrades:        5,
		SmartWalletMinNotional:      decimal.NewFromInt(100),
	}
}

func TestEvaluate_FreshWalletBigSize(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{MarketID: 1, WalletAddress: "w_new", Side: "buy", Shares: decimal.NewFromInt(2000), Price: decimal.NewFromFloat(0.6), TradedAt: base},
	}
	ctx := Context{Wallets: map[string]WalletContext{}, MarketPriceHistory: map[uint64][]PricePoint{}}

	detections := Evaluate(trades, ctx, defaultThresholds())

	// A brand-new wallet's first qualifying big trade is also a
	// low-activity big trade: both detectors fire independently.
	require.Len(t, detections, 2)
	assert.Equal(t, signalFreshWalletBigSize, detections[0].SignalType)
	assert.Equal(t, severityHigh, detections[0].Severity)
	assert.True(t, detections[0].Score.Equal(decimal.NewFromInt(1200)), "score=%s", detections[0].Score)
	assert.Equal(t, signalLowActivityWalletBigSize, detections[1].SignalType)
	assert.Equal(t, severityMedium, detections[1].Severity)
	assert.True(t, detections[1].Score.Equal(decimal.NewFromInt(1200)), "score=%s", detections[1].Score)
}

func TestEvaluate_RepeatEntries(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{MarketID: 1, WalletAddress: "w1", Side: "buy", Shares: decimal.NewFromInt(10), Price: decimal.NewFromFloat(0.5), TradedAt: base},
		{MarketID: 1, WalletAddress: "w1", Side: "buy", Shares: decimal.NewFromInt(10), Price: decimal.NewFromFloat(0.5), TradedAt: base.Add(3 * time.Minute)},
		{MarketID: 1, WalletAddress: "w1", Side: "buy", Shares: decimal.NewFromInt(10), Price: decimal.NewFromFloat(0.5), TradedAt: base.Add(8 * time.Minute)},
	}
	// w1 already traded before, so it does not also trip FRESH_WALLET_BIG_SIZE.
	firstTradeAt := base.Add(-24 * time.Hour)
	ctx := Context{
		Wallets:            map[string]WalletContext{"w1": {FirstTradeAt: &firstTradeAt, TradeCount24h: 10}},
		MarketPriceHistory: map[uint64][]PricePoint{},
	}

	detections := Evaluate(trades, ctx, defaultThresholds())

	var repeats []Detection
	for _, d := range detections {
		if d.SignalType == signalRepeatEntries {
			repeats = append(repeats, d)
		}
	}
	require.Len(t, repeats, 1)
	assert.Equal(t, severityMedium, repeats[0].Severity)
	assert.True(t, repeats[0].Score.Equal(decimal.NewFromInt(3)))
	assert.True(t, repeats[0].Trade.TradedAt.Equal(trades[2].TradedAt))
}

func TestEvaluate_Clustering(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{MarketID: 1, WalletAddress: "w1", Side: "buy", Shares: decimal.NewFromInt(300), Price: decimal.NewFromInt(1), TradedAt: base},
		{MarketID: 1, WalletAddress: "w2", Side: "buy", Shares: decimal.NewFromInt(300), Price: decimal.NewFromInt(1), TradedAt: base.Add(2 * time.Minute)},
		{MarketID: 1, WalletAddress: "w3", Side: "buy", Shares: decimal.NewFromInt(300), Price: decimal.NewFromInt(1), TradedAt: base.Add(4 * time.Minute)},
	}
	ctx := Context{Wallets: map[string]WalletContext{}, MarketPriceHistory: map[uint64][]PricePoint{}}

	detections := Evaluate(trades, ctx, defaultThresholds())

	var clusters []Detection
	for _, d := range detections {
		if d.SignalType == signalClustering {
			clusters = append(clusters, d)
		}
	}
	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].Details["unique_wallets"])
	assert.True(t, clusters[0].Score.Equal(decimal.NewFromInt(900)), "score=%s", clusters[0].Score)
}

func TestEvaluate_ThinMarketImpact(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]PricePoint, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, PricePoint{TradedAt: base.Add(-time.Duration(10-i) * time.Minute), Price: decimal.NewFromFloat(0.50)})
	}
	trades := []Trade{
		{MarketID: 1, WalletAddress: "w1", Side: "buy", Shares: decimal.NewFromInt(1034), Price: decimal.NewFromFloat(0.58), TradedAt: base},
	}
	ctx := Context{
		Wallets:            map[string]WalletContext{},
		MarketPriceHistory: map[uint64][]PricePoint{1: history},
	}

	detections := Evaluate(trades, ctx, defaultThresholds())

	require.Len(t, detections, 1)
	assert.Equal(t, signalThinMarketImpact, detections[0].SignalType)
	assert.Equal(t, severityHigh, detections[0].Severity)
	assert.True(t, detections[0].Score.Sub(decimal.NewFromFloat(0.16)).Abs().LessThan(decimal.NewFromFloat(0.0001)), "deviation=%s", detections[0].Score)
}

func TestEvaluate_EarlyPositioning(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{MarketID: 1, WalletAddress: "w_smart", Side: "buy", Shares: decimal.NewFromInt(200), Price: decimal.NewFromFloat(0.5), TradedAt: base},
	}
	firstTradeAt := base.Add(-48 * time.Hour)
	ctx := Context{
		Wallets: map[string]WalletContext{
			"w_smart": {
				FirstTradeAt:    &firstTradeAt,
				TradeCount24h:   10,
				HasStats:        true,
				EvaluatedTrades: 15,
				AccuracyScore:   decimal.NewFromFloat(0.75),
			},
		},
		MarketPriceHistory: map[uint64][]PricePoint{},
	}

	detections := Evaluate(trades, ctx, defaultThresholds())

	var found []Detection
	for _, d := range detections {
		if d.SignalType == signalEarlyPositioning {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, severityHigh, found[0].Severity)
	assert.True(t, found[0].Score.Equal(decimal.NewFromFloat(75)), "score=%s", found[0].Score)
}

func TestEvaluate_DeterministicReplay(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{MarketID: 1, WalletAddress: "w1", Side: "buy", Shares: decimal.NewFromInt(2000), Price: decimal.NewFromFloat(0.6), TradedAt: base},
		{MarketID: 1, WalletAddress: "w2", Side: "buy", Shares: decimal.NewFromInt(300), Price: decimal.NewFromInt(1), TradedAt: base.Add(time.Minute)},
	}
	ctx := Context{Wallets: map[string]WalletContext{}, MarketPriceHistory: map[uint64][]PricePoint{}}
	thresholds := defaultThresholds()

	first := Evaluate(trades, ctx, thresholds)
	second := Evaluate(trades, ctx, thresholds)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SignalType, second[i].SignalType)
		assert.True(t, first[i].Score.Equal(second[i].Score))
	}
}

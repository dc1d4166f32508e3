// Package signals implements the windowed trade-anomaly detectors as a
// pure function over an in-memory batch: no store access happens here,
// so the same ordered trade sequence and context always produce the
// same ordered detections (the replay-determinism property).
package signals

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Thresholds holds every detector's configurable trigger values.
type Thresholds struct {
	BigNotional                 decimal.Decimal
	LowActivityMaxTrades        int
	RepeatWindow                time.Duration
	RepeatMinCount              int
	ImpactDeviation             decimal.Decimal
	ImpactMinNotional           decimal.Decimal
	ClusterWindow               time.Duration
	ClusterMinWallets           int
	ClusterMinNotionalPerWallet decimal.Decimal
	SmartWalletMinAccuracy      decimal.Decimal
	SmartWalletMinTrades        int
	SmartWalletMinNotional      decimal.Decimal
}

// Trade is one batch input, already normalized and ordered by TradedAt.
type Trade struct {
	MarketID      uint64
	WalletAddress string
	Side          string
	Shares        decimal.Decimal
	Price         decimal.Decimal
	TradedAt      time.Time
}

// WalletContext is the pre-batch state the engine needs per wallet,
// loaded read-only from the store before the batch runs.
type WalletContext struct {
	FirstTradeAt    *time.Time
	TradeCount24h   int
	HasStats        bool
	EvaluatedTrades int
	AccuracyScore   decimal.Decimal
}

// PricePoint is one (timestamp, price) observation in a market's
// pre-batch price history ring.
type PricePoint struct {
	TradedAt time.Time
	Price    decimal.Decimal
}

// Context is the full read-only pre-batch state. The engine mutates
// its own copies during a run; callers should treat the values passed
// in as immutable going forward.
type Context struct {
	Wallets            map[string]WalletContext
	MarketPriceHistory map[uint64][]PricePoint
}

// Detection is one detector emission for one trade.
type Detection struct {
	Trade      Trade
	SignalType string
	Severity   string
	Score      decimal.Decimal
	Details    map[string]any
}

const (
	signalFreshWalletBigSize       = "FRESH_WALLET_BIG_SIZE"
	signalLowActivityWalletBigSize = "LOW_ACTIVITY_WALLET_BIG_SIZE"
	signalRepeatEntries            = "REPEAT_ENTRIES"
	signalThinMarketImpact         = "THIN_MARKET_IMPACT"
	signalClustering               = "CLUSTERING"
	signalEarlyPositioning         = "EARLY_POSITIONING"

	severityHigh   = "high"
	severityMedium = "medium"
)

type clusterEntry struct {
	tradedAt time.Time
	wallet   string
	notional decimal.Decimal
}

// engineState is the mutable scratch space for one batch run: the
// per-(wallet,market,side) repeat-entry deque, the per-(market,side)
// clustering deque, and the working copies of wallet/price context
// that get updated as trades are processed in order.
type engineState struct {
	thresholds Thresholds

	wallets map[string]WalletContext
	prices  map[uint64][]PricePoint

	repeatWindows  map[string][]time.Time
	clusterWindows map[string][]clusterEntry
}

// Evaluate runs every detector over an ordered trade batch and returns
// the detections in the same relative order the trades were observed.
func Evaluate(trades []Trade, ctx Context, thresholds Thresholds) []Detection {
	st := &engineState{
		thresholds:     thresholds,
		wallets:        cloneWallets(ctx.Wallets),
		prices:         clonePrices(ctx.MarketPriceHistory),
		repeatWindows:  make(map[string][]time.Time),
		clusterWindows: make(map[string][]clusterEntry),
	}

	var out []Detection
	for _, t := range trades {
		out = append(out, st.evaluateOne(t)...)
		st.advance(t)
	}
	return out
}

func cloneWallets(in map[string]WalletContext) map[string]WalletContext {
	out := make(map[string]WalletContext, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clonePrices(in map[uint64][]PricePoint) map[uint64][]PricePoint {
	out := make(map[uint64][]PricePoint, len(in))
	for k, v := range in {
		cp := make([]PricePoint, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func notional(t Trade) decimal.Decimal {
	return t.Shares.Mul(t.Price)
}

func (st *engineState) evaluateOne(t Trade) []Detection {
	var detections []Detection
	n := notional(t)
	wc := st.wallets[t.WalletAddress]

	if wc.FirstTradeAt == nil && n.GreaterThanOrEqual(st.thresholds.BigNotional) {
		detections = append(detections, Detection{
			Trade: t, SignalType: signalFreshWalletBigSize, Severity: severityHigh, Score: n,
			Details: map[string]any{"notional": n.String()},
		})
	}
	if wc.TradeCount24h <= st.thresholds.LowActivityMaxTrades && n.GreaterThanOrEqual(st.thresholds.BigNotional) {
		detections = append(detections, Detection{
			Trade: t, SignalType: signalLowActivityWalletBigSize, Severity: severityMedium, Score: n,
			Details: map[string]any{"notional": n.String(), "trade_count_24h": wc.TradeCount24h},
		})
	}

	if d, ok := st.checkRepeatEntries(t); ok {
		detections = append(detections, d)
	}
	if d, ok := st.checkThinMarketImpact(t, n); ok {
		detections = append(detections, d)
	}
	if d, ok := st.checkClustering(t, n); ok {
		detections = append(detections, d)
	}
	if d, ok := st.checkEarlyPositioning(t, n, wc); ok {
		detections = append(detections, d)
	}

	return detections
}

func (st *engineState) checkRepeatEntries(t Trade) (Detection, bool) {
	key := t.WalletAddress + "|" + strconv.FormatUint(t.MarketID, 10) + "|" + t.Side
	window := st.repeatWindows[key]
	cutoff := t.TradedAt.Add(-st.thresholds.RepeatWindow)
	pruned := window[:0]
	for _, ts := range window {
		if !ts.Before(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	pruned = append(pruned, t.TradedAt)
	st.repeatWindows[key] = pruned

	if len(pruned) < st.thresholds.RepeatMinCount {
		return Detection{}, false
	}
	return Detection{
		Trade: t, SignalType: signalRepeatEntries, Severity: severityMedium,
		Score:   decimal.NewFromInt(int64(len(pruned))),
		Details: map[string]any{"count": len(pruned)},
	}, true
}

func (st *engineState) checkThinMarketImpact(t Trade, n decimal.Decimal) (Detection, bool) {
	history := st.prices[t.MarketID]
	if len(history) == 0 {
		return Detection{}, false
	}
	start := 0
	if len(history) > 10 {
		start = len(history) - 10
	}
	window := history[start:]

	sum := decimal.Zero
	for _, p := range window {
		sum = sum.Add(p.Price)
	}
	baseline := sum.Div(decimal.NewFromInt(int64(len(window))))
	if baseline.IsZero() {
		return Detection{}, false
	}

	deviation := t.Price.Sub(baseline).Abs().Div(baseline)
	if n.LessThan(st.thresholds.ImpactMinNotional) || deviation.LessThan(st.thresholds.ImpactDeviation) {
		return Detection{}, false
	}

	severity := severityMedium
	if deviation.GreaterThanOrEqual(decimal.NewFromFloat(0.10)) {
		severity = severityHigh
	}
	return Detection{
		Trade: t, SignalType: signalThinMarketImpact, Severity: severity, Score: deviation,
		Details: map[string]any{"baseline": baseline.String(), "deviation": deviation.String()},
	}, true
}

func (st *engineState) checkClustering(t Trade, n decimal.Decimal) (Detection, bool) {
	key := strconv.FormatUint(t.MarketID, 10) + "|" + t.Side
	window := st.clusterWindows[key]
	cutoff := t.TradedAt.Add(-st.thresholds.ClusterWindow)
	pruned := window[:0]
	for _, e := range window {
		if !e.tradedAt.Before(cutoff) {
			pruned = append(pruned, e)
		}
	}
	pruned = append(pruned, clusterEntry{tradedAt: t.TradedAt, wallet: t.WalletAddress, notional: n})
	st.clusterWindows[key] = pruned

	distinct := make(map[string]bool, len(pruned))
	total := decimal.Zero
	for _, e := range pruned {
		distinct[e.wallet] = true
		total = total.Add(e.notional)
	}
	if len(distinct) < st.thresholds.ClusterMinWallets {
		return Detection{}, false
	}
	required := st.thresholds.ClusterMinNotionalPerWallet.Mul(decimal.NewFromInt(int64(len(distinct))))
	if total.LessThan(required) {
		return Detection{}, false
	}
	return Detection{
		Trade: t, SignalType: signalClustering, Severity: severityMedium, Score: total,
		Details: map[string]any{"unique_wallets": len(distinct), "total_notional": total.String()},
	}, true
}

func (st *engineState) checkEarlyPositioning(t Trade, n decimal.Decimal, wc WalletContext) (Detection, bool) {
	if !wc.HasStats || wc.EvaluatedTrades < st.thresholds.SmartWalletMinTrades {
		return Detection{}, false
	}
	if wc.AccuracyScore.LessThan(st.thresholds.SmartWalletMinAccuracy) {
		return Detection{}, false
	}
	if n.LessThan(st.thresholds.SmartWalletMinNotional) {
		return Detection{}, false
	}
	severity := severityMedium
	if wc.AccuracyScore.GreaterThanOrEqual(decimal.NewFromFloat(0.75)) {
		severity = severityHigh
	}
	score := wc.AccuracyScore.Mul(n)
	return Detection{
		Trade: t, SignalType: signalEarlyPositioning, Severity: severity, Score: score,
		Details: map[string]any{"accuracy_score": wc.AccuracyScore.String(), "notional": n.String()},
	}, true
}

// advance updates the mutable per-wallet and per-market state after a
// trade has been checked, so later trades in the same batch see it.
func (st *engineState) advance(t Trade) {
	wc := st.wallets[t.WalletAddress]
	if wc.FirstTradeAt == nil {
		ts := t.TradedAt
		wc.FirstTradeAt = &ts
	}
	wc.TradeCount24h++
	st.wallets[t.WalletAddress] = wc

	history := st.prices[t.MarketID]
	history = append(history, PricePoint{TradedAt: t.TradedAt, Price: t.Price})
	if len(history) > 50 {
		history = history[len(history)-50:]
	}
	st.prices[t.MarketID] = history
}

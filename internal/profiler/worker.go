package profiler

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketwatch/config"
	"marketwatch/internal/store"
)

// Worker periodically rescans trades old enough to have 4h-ahead price
// context and recomputes every affected wallet's accuracy aggregate.
// There is no durable cursor for this pass: it is explicitly
// best-effort, and a missing WalletStats row only suppresses the
// EARLY_POSITIONING detector for that wallet, it never blocks other
// work.
type Worker struct {
	logger *zap.Logger
	db     *gorm.DB

	interval       time.Duration
	minNotional    decimal.Decimal
	favorableDelta decimal.Decimal
	priceTolerance time.Duration
	minEvaluated   int

	errorSleep time.Duration
}

func NewWorker(logger *zap.Logger, db *gorm.DB, cfg config.ProfilerConfig) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		logger:         logger,
		db:             db,
		interval:       cfg.Interval,
		minNotional:    decimal.NewFromFloat(cfg.MinNotional),
		favorableDelta: decimal.NewFromFloat(cfg.FavorableDelta),
		priceTolerance: cfg.PriceTolerance,
		minEvaluated:   cfg.MinEvaluated,
		errorSleep:     60 * time.Second,
	}
}

// Run loops until ctx is canceled, sleeping `interval` between passes
// and `errorSleep` after a failed one, per the best-effort contract.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.runOnce(); err != nil {
			w.logger.Error("accuracy profiler pass failed", zap.Error(err))
			sleepOrDone(ctx, w.errorSleep)
			continue
		}
		sleepOrDone(ctx, w.interval)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// runOnce rescans qualifying trades old enough for the 4h horizon and
// rewrites the affected wallets' WalletStats rows. Each pass reads at
// most the 5000 oldest qualifying trades by traded_at; trades beyond
// that cap are not scored.
func (w *Worker) runOnce() error {
	now := time.Now().UTC()
	readyBefore := now.Add(-(Horizon4h.Offset + w.priceTolerance))

	trades := store.NewTradeRepository(w.db)
	candidates, err := trades.UnevaluatedSince(time.Time{}, w.minNotional, 5000)
	if err != nil {
		return err
	}

	byWallet := make(map[string][]store.Trade)
	for _, tr := range candidates {
		if tr.TradedAt.After(readyBefore) {
			continue
		}
		byWallet[tr.WalletAddress] = append(byWallet[tr.WalletAddress], tr)
	}

	walletStats := store.NewWalletStatsRepository(w.db)
	for wallet, walletTrades := range byWallet {
		sort.Slice(walletTrades, func(i, j int) bool {
			return walletTrades[i].TradedAt.Before(walletTrades[j].TradedAt)
		})

		agg := NewWalletAggregate()
		for _, tr := range walletTrades {
			outcomes := make(map[string]HorizonOutcome, len(Horizons))
			for _, h := range Horizons {
				target := tr.TradedAt.Add(h.Offset)
				later, err := trades.NearestAfter(tr.MarketID, target, w.priceTolerance)
				if err != nil {
					return err
				}
				if later == nil {
					outcomes[h.Name] = HorizonOutcome{Evaluated: false}
					continue
				}
				delta := FavorableDelta(tr.Side, tr.Price, later.Price)
				outcomes[h.Name] = HorizonOutcome{
					Evaluated: true,
					Correct:   delta.GreaterThanOrEqual(w.favorableDelta),
					Delta:     delta,
				}
			}
			agg.Add(tr.Shares.Mul(tr.Price), outcomes)
		}

		ws := &store.WalletStats{
			WalletAddress:       wallet,
			TotalTrades:         agg.TotalTrades,
			EvaluatedTrades:     agg.EvaluatedTrades,
			Correct15m:          agg.Correct15m,
			Correct1h:           agg.Correct1h,
			Correct4h:           agg.Correct4h,
			AccuracyScore:       ComputeAccuracyScore(agg.EvaluatedTrades, agg.Correct15m, agg.Correct1h, agg.Correct4h, w.minEvaluated),
			AvgDeltaWhenCorrect: AvgDeltaWhenCorrect(agg.SumDeltaWhenCorrect4h, agg.Correct4h),
			TotalNotional:       decimal.NewNullDecimal(agg.TotalNotional),
			CurrentStreak:       agg.CurrentStreak(),
			BestStreak:          agg.BestStreak(),
		}
		if err := walletStats.Save(ws); err != nil {
			return err
		}
	}

	return nil
}

package signals

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketwatch/config"
	"marketwatch/internal/backoff"
	"marketwatch/internal/store"
)

// Worker is the store-backed shell around the pure detector engine: it
// loads the pre-batch context, runs Evaluate, and persists the result
// with the cursor advance in one transaction.
type Worker struct {
	logger *zap.Logger
	db     *gorm.DB

	batchSize         int
	thresholds        Thresholds
	lowActivityWindow time.Duration
	idleSleep         time.Duration
	backoffPolicy     *backoff.Policy
}

func NewWorker(logger *zap.Logger, db *gorm.DB, cfg config.SignalsConfig) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		logger:            logger,
		db:                db,
		batchSize:         cfg.BatchSize,
		thresholds:        thresholdsFromConfig(cfg),
		lowActivityWindow: cfg.LowActivityWindow,
		idleSleep:         cfg.IdleSleep,
		backoffPolicy:     backoff.New(5*time.Second, 180*time.Second),
	}
}

func thresholdsFromConfig(cfg config.SignalsConfig) Thresholds {
	return Thresholds{
		BigNotional:                 decimal.NewFromFloat(cfg.BigNotional),
		LowActivityMaxTrades:        cfg.LowActivityMaxTrades,
		RepeatWindow:                cfg.RepeatWindow,
		RepeatMinCount:              cfg.RepeatMinCount,
		ImpactDeviation:             decimal.NewFromFloat(cfg.ImpactDeviation),
		ImpactMinNotional:           decimal.NewFromFloat(cfg.ImpactMinNotional),
		ClusterWindow:               cfg.ClusterWindow,
		ClusterMinWallets:           cfg.ClusterMinWallets,
		ClusterMinNotionalPerWallet: decimal.NewFromFloat(cfg.ClusterMinNotional),
		SmartWalletMinAccuracy:      decimal.NewFromFloat(cfg.SmartWalletMinAccuracy),
		SmartWalletMinTrades:        cfg.SmartWalletMinTrades,
		SmartWalletMinNotional:      decimal.NewFromFloat(cfg.SmartWalletMinNotional),
	}
}

// Run loops until ctx is canceled, processing one batch per pass.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.runOnce()
		if err != nil {
			w.logger.Error("signal engine pass failed", zap.Error(err))
			sleepOrDone(ctx, w.backoffPolicy.Next())
			continue
		}
		w.backoffPolicy.Reset()

		if processed == 0 {
			sleepOrDone(ctx, w.idleSleep)
		}
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

// runOnce loads one batch strictly after the cursor, evaluates it, and
// persists the detections with the cursor advance in a single
// transaction. Returns the number of trades processed.
func (w *Worker) runOnce() (int, error) {
	var processed int

	err := w.db.Transaction(func(tx *gorm.DB) error {
		cursors := store.NewCursorRepository(tx)
		cursorVal, ok, err := cursors.Get(store.CursorSignalsLastTradeAt)
		if err != nil {
			return err
		}
		var after *time.Time
		if ok && cursorVal != "" {
			t, err := time.Parse(time.RFC3339Nano, cursorVal)
			if err != nil {
				return err
			}
			after = &t
		}

		trades := store.NewTradeRepository(tx)
		batch, err := trades.SinceForSignals(after, w.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		processed = len(batch)

		batchStart := batch[0].TradedAt

		walletStats := store.NewWalletStatsRepository(tx)
		walletCtx := make(map[string]WalletContext)
		for _, tr := range batch {
			if _, seen := walletCtx[tr.WalletAddress]; seen {
				continue
			}
			wc := WalletContext{}
			firstAt, err := trades.WalletFirstTradeAt(tr.WalletAddress, batchStart)
			if err != nil {
				return err
			}
			wc.FirstTradeAt = firstAt
			count, err := trades.WalletTradeCountSince(tr.WalletAddress, batchStart.Add(-w.lowActivityWindow), batchStart)
			if err != nil {
				return err
			}
			wc.TradeCount24h = count

			ws, err := walletStats.Get(tr.WalletAddress)
			if err != nil {
				return err
			}
			if ws != nil && ws.AccuracyScore.Valid {
				wc.HasStats = true
				wc.EvaluatedTrades = ws.EvaluatedTrades
				wc.AccuracyScore = ws.AccuracyScore.Decimal
			}
			walletCtx[tr.WalletAddress] = wc
		}

		priceHistory := make(map[uint64][]PricePoint)
		for _, tr := range batch {
			if _, seen := priceHistory[tr.MarketID]; seen {
				continue
			}
			history, err := trades.MarketPriceHistory(tr.MarketID, batchStart, 50)
			if err != nil {
				return err
			}
			points := make([]PricePoint, 0, len(history))
			for _, h := range history {
				points = append(points, PricePoint{TradedAt: h.TradedAt, Price: h.Price})
			}
			priceHistory[tr.MarketID] = points
		}

		engineTrades := make([]Trade, 0, len(batch))
		for _, tr := range batch {
			engineTrades = append(engineTrades, Trade{
				MarketID:      tr.MarketID,
				WalletAddress: tr.WalletAddress,
				Side:          tr.Side,
				Shares:        tr.Shares,
				Price:         tr.Price,
				TradedAt:      tr.TradedAt,
			})
		}

		detections := Evaluate(engineTrades, Context{Wallets: walletCtx, MarketPriceHistory: priceHistory}, w.thresholds)

		events := make([]store.SignalEvent, 0, len(detections))
		for _, d := range detections {
			marketID := d.Trade.MarketID
			wallet := d.Trade.WalletAddress
			side := d.Trade.Side
			severity := d.Severity
			observedAt := d.Trade.TradedAt
			events = append(events, store.SignalEvent{
				MarketID:      &marketID,
				WalletAddress: &wallet,
				Side:          &side,
				SignalType:    d.SignalType,
				Severity:      &severity,
				Score:         decimal.NewNullDecimal(d.Score),
				DetailsJSON:   store.JSONMap(d.Details),
				ObservedAt:    &observedAt,
			})
		}

		signals := store.NewSignalRepository(tx)
		if err := signals.InsertBatch(events); err != nil {
			return err
		}

		last := batch[len(batch)-1].TradedAt
		return cursors.Set(store.CursorSignalsLastTradeAt, last.Format(time.RFC3339Nano))
	})

	return processed, err
}

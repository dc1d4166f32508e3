package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketwatch/config"
	"marketwatch/internal/backoff"
	"marketwatch/internal/store"
)

// Worker idles until new signals exist past its has-work cursor, then
// runs one window-based aggregation pass over ALL recent signals (the
// cursor only gates whether to run, it never filters the pass itself
// — see the scoring cursor design note) and upserts one Alert per
// qualifying (market, side) group.
type Worker struct {
	logger *zap.Logger
	db     *gorm.DB

	window        time.Duration
	weights       Weights
	idleSleep     time.Duration
	backoffPolicy *backoff.Policy
}

func NewWorker(logger *zap.Logger, db *gorm.DB, cfg config.ScoringConfig) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := DefaultWeights(
		decimal.NewFromFloat(cfg.BonusPerExtraType),
		decimal.NewFromFloat(cfg.HighThreshold),
		decimal.NewFromFloat(cfg.WatchThreshold),
	)
	return &Worker{
		logger:        logger,
		db:            db,
		window:        cfg.Window,
		weights:       w,
		idleSleep:     cfg.IdleSleep,
		backoffPolicy: backoff.New(5*time.Second, 180*time.Second),
	}
}

// Run loops until ctx is canceled, idling when there is no new work.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ran, err := w.runOnce()
		if err != nil {
			w.logger.Error("scoring aggregator pass failed", zap.Error(err))
			sleepOrDone(ctx, w.backoffPolicy.Next())
			continue
		}
		w.backoffPolicy.Reset()

		if !ran {
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

// runOnce checks whether any signal id exceeds the cursor; if so it
// runs one full window-based aggregation pass and advances the cursor
// to the current max signal id. Returns whether a pass ran.
func (w *Worker) runOnce() (bool, error) {
	var ran bool

	err := w.db.Transaction(func(tx *gorm.DB) error {
		cursors := store.NewCursorRepository(tx)
		cursorVal, ok, err := cursors.Get(store.CursorScoringLastSignalID)
		if err != nil {
			return err
		}
		var cursorID uint64
		if ok {
			if _, err := fmt.Sscanf(cursorVal, "%d", &cursorID); err != nil {
				return err
			}
		}

		signals := store.NewSignalRepository(tx)
		maxID, err := signals.MaxID()
		if err != nil {
			return err
		}
		if maxID <= cursorID {
			return nil
		}
		ran = true

		now := time.Now().UTC()
		events, err := signals.WithinWindow(now, w.window)
		if err != nil {
			return err
		}

		inputs := make([]SignalInput, 0, len(events))
		for _, e := range events {
			in := SignalInput{SignalType: e.SignalType}
			if e.MarketID != nil {
				in.MarketID = *e.MarketID
			}
			if e.Side != nil {
				in.Side = *e.Side
			}
			if e.Severity != nil {
				in.Severity = *e.Severity
			}
			if e.WalletAddress != nil {
				in.WalletAddress = *e.WalletAddress
			}
			if e.ObservedAt != nil {
				in.ObservedAt = *e.ObservedAt
			} else {
				in.ObservedAt = e.CreatedAt
			}
			inputs = append(inputs, in)
		}

		windowHours := w.window.Hours()
		results := Aggregate(inputs, w.weights, windowHours)

		alerts := store.NewAlertRepository(tx)
		for _, r := range results {
			examples := make([]map[string]any, 0, len(r.Examples))
			for _, ex := range r.Examples {
				examples = append(examples, map[string]any{
					"signal_type": ex.SignalType,
					"severity":    ex.Severity,
					"wallet":      ex.WalletAddress,
					"observed_at": ex.ObservedAt.Format(time.RFC3339Nano),
				})
			}
			why := store.JSONMap{
				"score":            r.Score.String(),
				"counts_by_signal": r.CountsBySignal,
				"distinct_types":   r.DistinctTypes,
				"example_wallets":  r.ExampleWallets,
				"examples":         examples,
				"window_hours":     r.WindowHours,
			}
			message := fmt.Sprintf("score=%s status=%s", r.Score.StringFixed(2), r.Status)
			if err := alerts.Upsert(store.UpsertInput{
				MarketID: r.MarketID,
				Side:     r.Side,
				Status:   r.Status,
				Score:    r.Score,
				Message:  message,
				WhyJSON:  why,
			}); err != nil {
				return err
			}
		}

		return cursors.Set(store.CursorScoringLastSignalID, fmt.Sprintf("%d", maxID))
	})

	return ran, err
}

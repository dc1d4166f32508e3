package notifier

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketwatch/internal/backoff"
	"marketwatch/internal/store"
)

// Worker dispatches newly updated alerts to the configured Notifier,
// advancing the notifier cursor only past alerts it has successfully
// sent, so a delivery failure is retried on the next pass rather than
// silently dropped.
type Worker struct {
	logger   *zap.Logger
	db       *gorm.DB
	notifier Notifier

	alertLimit    int
	reasonsLimit  int
	walletsLimit  int
	idleSleep     time.Duration
	backoffPolicy *backoff.Policy
}

// Config carries the tunables the worker reads from the process
// configuration.
type Config struct {
	AlertLimit   int
	ReasonsLimit int
	WalletsLimit int
	IdleSleep    time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

func NewWorker(logger *zap.Logger, db *gorm.DB, n Notifier, cfg Config) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		logger:        logger,
		db:            db,
		notifier:      n,
		alertLimit:    cfg.AlertLimit,
		reasonsLimit:  cfg.ReasonsLimit,
		walletsLimit:  cfg.WalletsLimit,
		idleSleep:     cfg.IdleSleep,
		backoffPolicy: backoff.New(cfg.BackoffBase, cfg.BackoffMax),
	}
}

// Run loops until ctx is canceled, dispatching one batch of alerts per
// pass and sleeping idleSleep between passes with no new work.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dispatched, err := w.runOnce(ctx)
		if err != nil {
			w.logger.Error("notifier pass failed", zap.Error(err))
			sleepOrDone(ctx, w.backoffPolicy.Next())
			continue
		}
		w.backoffPolicy.Reset()

		if dispatched == 0 {
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

// runOnce selects one batch of alerts past the cursor, dispatches each
// through the configured Notifier, and advances the cursor to the
// latest updated_at it successfully delivered.
func (w *Worker) runOnce(ctx context.Context) (int, error) {
	cursors := store.NewCursorRepository(w.db)
	cursorVal, ok, err := cursors.Get(store.CursorNotifierLastAlertTS)
	if err != nil {
		return 0, err
	}
	var cursor *time.Time
	if ok && cursorVal != "" {
		t, err := time.Parse(time.RFC3339Nano, cursorVal)
		if err != nil {
			return 0, err
		}
		cursor = &t
	}

	alerts := store.NewAlertRepository(w.db)
	batch, err := alerts.SinceForNotifier(cursor, w.alertLimit)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	markets := store.NewMarketRepository(w.db)
	signals := store.NewSignalRepository(w.db)

	dispatched := 0
	latest := cursor
	for _, a := range batch {
		if a.Status == nil || (*a.Status != store.AlertStatusWatch && *a.Status != store.AlertStatusHigh) {
			latest = advanceLatest(latest, a.UpdatedAt)
			continue
		}

		msg, err := w.buildMessage(markets, signals, a)
		if err != nil {
			return dispatched, err
		}
		if err := w.notifier.SendAlert(ctx, msg); err != nil {
			return dispatched, err
		}
		dispatched++
		latest = advanceLatest(latest, a.UpdatedAt)
	}

	if latest != nil {
		if err := cursors.Set(store.CursorNotifierLastAlertTS, latest.Format(time.RFC3339Nano)); err != nil {
			return dispatched, err
		}
	}
	return dispatched, nil
}

func advanceLatest(cur *time.Time, candidate time.Time) *time.Time {
	if cur == nil || candidate.After(*cur) {
		c := candidate
		return &c
	}
	return cur
}

// reasonTypes lists the signal types behind an alert, pulled from the
// explanation blob's counts_by_signal histogram. Falls back to the
// alert's own message line when the blob is absent or malformed.
func reasonTypes(a store.Alert) []string {
	if counts, ok := a.WhyJSON["counts_by_signal"].(map[string]any); ok && len(counts) > 0 {
		types := make([]string, 0, len(counts))
		for signalType := range counts {
			types = append(types, signalType)
		}
		sort.Strings(types)
		return types
	}
	if a.Message != nil {
		return []string{*a.Message}
	}
	return nil
}

func (w *Worker) buildMessage(markets *store.MarketRepository, signals *store.SignalRepository, a store.Alert) (AlertMessage, error) {
	msg := AlertMessage{
		UpdatedAt: a.UpdatedAt,
	}
	if a.MarketID != nil {
		msg.MarketID = *a.MarketID
		if m, err := markets.ByID(*a.MarketID); err == nil && m != nil {
			msg.MarketName = m.Name
		}
	}
	if a.Side != nil {
		msg.Side = *a.Side
	}
	if a.Status != nil {
		msg.Status = *a.Status
	}
	if a.Score.Valid {
		msg.Score = a.Score.Decimal.StringFixed(2)
	}
	msg.ReasonTypes = reasonTypes(a)
	if len(msg.ReasonTypes) > w.reasonsLimit {
		msg.ReasonTypes = msg.ReasonTypes[:w.reasonsLimit]
	}

	if a.MarketID != nil && a.Side != nil {
		events, err := signals.RecentForMarketSide(*a.MarketID, *a.Side, w.walletsLimit)
		if err != nil {
			return AlertMessage{}, err
		}
		seen := make(map[string]bool, len(events))
		for _, ev := range events {
			if ev.WalletAddress == nil || seen[*ev.WalletAddress] {
				continue
			}
			seen[*ev.WalletAddress] = true
			msg.Wallets = append(msg.Wallets, *ev.WalletAddress)

			summary := SignalSummary{SignalType: ev.SignalType}
			if ev.Severity != nil {
				summary.Severity = *ev.Severity
			}
			if ev.WalletAddress != nil {
				summary.WalletAddress = *ev.WalletAddress
			}
			if ev.Side != nil {
				summary.Side = *ev.Side
			}
			if ev.Score.Valid {
				summary.Score = ev.Score.Decimal.StringFixed(2)
			}
			if ev.ObservedAt != nil {
				summary.ObservedAt = *ev.ObservedAt
			}
			msg.Signals = append(msg.Signals, summary)
		}
	}

	return msg, nil
}

// Package ingestion periodically refreshes the active-market set and
// polls each market's trade feed since its own durable cursor.
package ingestion

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketwatch/config"
	"marketwatch/internal/backoff"
	"marketwatch/internal/polymarketapi"
	"marketwatch/internal/polymarketevents"
	"marketwatch/internal/store"
)

// Worker is the ingestion worker's single serial loop.
type Worker struct {
	logger *zap.Logger
	db     *gorm.DB

	api    *polymarketapi.Client
	events *polymarketevents.Client

	refreshInterval time.Duration
	minPoll         time.Duration
	maxPoll         time.Duration
	useEventsFeed   bool

	backoffPolicy *backoff.Policy

	nextRefreshAt time.Time
	schedule      map[uint64]time.Time
	externalIDs   map[uint64]string
}

func NewWorker(logger *zap.Logger, db *gorm.DB, api *polymarketapi.Client, events *polymarketevents.Client, cfg config.IngestionConfig, backoffCfg config.BackoffConfig) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		logger:          logger,
		db:              db,
		api:             api,
		events:          events,
		refreshInterval: cfg.RefreshInterval,
		minPoll:         cfg.MinPollInterval,
		maxPoll:         cfg.MaxPollInterval,
		useEventsFeed:   cfg.UseEventsFeed,
		backoffPolicy:   backoff.New(backoffCfg.Base, backoffCfg.Max),
		schedule:        make(map[uint64]time.Time),
		externalIDs:     make(map[uint64]string),
	}
}

// Run loops until ctx is canceled. Per-market errors are logged and
// skipped; only a failure of the outer loop itself (e.g. the markets
// refresh) triggers backoff.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.tick(ctx); err != nil {
			w.logger.Error("ingestion tick failed", zap.Error(err))
			sleepOrDone(ctx, w.backoffPolicy.Next())
			continue
		}
		w.backoffPolicy.Reset()
		sleepOrDone(ctx, 1*time.Second)
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

func (w *Worker) tick(ctx context.Context) error {
	now := time.Now().UTC()

	if w.nextRefreshAt.IsZero() || !now.Before(w.nextRefreshAt) {
		if err := w.refreshMarkets(ctx); err != nil {
			return err
		}
		w.nextRefreshAt = now.Add(w.refreshInterval)
	}

	markets := store.NewMarketRepository(w.db)
	active, err := markets.ActiveMarkets()
	if err != nil {
		return err
	}

	for _, m := range active {
		next, scheduled := w.schedule[m.ID]
		if scheduled && now.Before(next) {
			continue
		}
		if err := w.pollMarket(ctx, m); err != nil {
			w.logger.Warn("poll market failed", zap.String("external_id", m.ExternalID), zap.Error(err))
		}
		w.schedule[m.ID] = now.Add(jitter(w.minPoll, w.maxPoll))
	}

	return nil
}

// refreshMarkets fetches the full market index, upserts each entry,
// and drops cached poll schedules for markets no longer returned.
func (w *Worker) refreshMarkets(ctx context.Context) error {
	normalized, err := w.api.FetchMarkets(ctx)
	if err != nil {
		return err
	}

	markets := store.NewMarketRepository(w.db)
	seen := make(map[string]bool, len(normalized))
	for _, n := range normalized {
		m, err := markets.Upsert(store.MarketInput{
			ExternalID: n.ExternalID,
			Name:       n.Name,
			Category:   n.Category,
			Status:     n.Status,
			ResolvedAt: n.ResolvedAt,
		})
		if err != nil {
			w.logger.Warn("upsert market failed", zap.String("external_id", n.ExternalID), zap.Error(err))
			continue
		}
		seen[n.ExternalID] = true
		w.externalIDs[m.ID] = m.ExternalID
	}

	for marketID, extID := range w.externalIDs {
		if !seen[extID] {
			delete(w.schedule, marketID)
			delete(w.externalIDs, marketID)
		}
	}
	return nil
}

// pollMarket fetches trades since the market's cursor and inserts them
// with the cursor advance in one transaction.
func (w *Worker) pollMarket(ctx context.Context, m store.Market) error {
	cursorKey := store.CursorTradesKey(m.ExternalID)

	cursors := store.NewCursorRepository(w.db)
	cursorVal, ok, err := cursors.Get(cursorKey)
	if err != nil {
		return err
	}
	var since *time.Time
	if ok && cursorVal != "" {
		t, err := time.Parse(time.RFC3339Nano, cursorVal)
		if err != nil {
			return err
		}
		since = &t
	}

	trades, err := w.api.FetchRecentTrades(ctx, m.ExternalID, since)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	inputs := make([]store.TradeInput, 0, len(trades))
	var maxTradedAt time.Time
	for _, t := range trades {
		shares, err := decimal.NewFromString(t.SharesRaw)
		if err != nil {
			w.logger.Warn("drop trade: unparseable shares", zap.String("market", m.ExternalID), zap.Error(err))
			continue
		}
		price, err := decimal.NewFromString(t.PriceRaw)
		if err != nil {
			w.logger.Warn("drop trade: unparseable price", zap.String("market", m.ExternalID), zap.Error(err))
			continue
		}
		inputs = append(inputs, store.TradeInput{
			MarketID:      m.ID,
			WalletAddress: t.WalletAddress,
			Side:          t.Side,
			Shares:        shares,
			Price:         price,
			TradedAt:      t.TradedAt,
			TradeHash:     t.Hash,
		})
		if t.TradedAt.After(maxTradedAt) {
			maxTradedAt = t.TradedAt
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	return w.db.Transaction(func(tx *gorm.DB) error {
		tradeRepo := store.NewTradeRepository(tx)
		accepted, err := tradeRepo.InsertBatch(inputs)
		if err != nil {
			return err
		}
		if accepted == 0 {
			return nil
		}
		return store.NewCursorRepository(tx).Set(cursorKey, maxTradedAt.Format(time.RFC3339Nano))
	})
}

// RunEventsFeed streams the optional low-latency websocket feed
// alongside the HTTP poller. It inserts prints through the same
// ON CONFLICT DO NOTHING path as the poller, but never advances a
// market's trade cursor — only the cursored HTTP poll in pollMarket
// does that, per the ingestion cursor contract. A feed disconnect
// simply triggers a reconnect after a short pause; it never propagates
// to the outer loop's backoff.
func (w *Worker) RunEventsFeed(ctx context.Context) {
	if w.events == nil || !w.events.Enabled() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		assetIDs, externalToMarket := w.activeAssetIDs()
		if len(assetIDs) == 0 {
			sleepOrDone(ctx, 5*time.Second)
			continue
		}

		prints, err := w.events.Connect(ctx, assetIDs)
		if err != nil {
			w.logger.Warn("events feed connect failed", zap.Error(err))
			sleepOrDone(ctx, 5*time.Second)
			continue
		}

		for p := range prints {
			marketID, ok := externalToMarket[p.AssetID]
			if !ok {
				continue
			}
			if err := w.insertEventsPrint(marketID, p); err != nil {
				w.logger.Warn("insert events print failed", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
			sleepOrDone(ctx, 2*time.Second)
		}
	}
}

func (w *Worker) activeAssetIDs() ([]string, map[string]uint64) {
	markets := store.NewMarketRepository(w.db)
	active, err := markets.ActiveMarkets()
	if err != nil {
		w.logger.Warn("list active markets for events feed failed", zap.Error(err))
		return nil, nil
	}
	ids := make([]string, 0, len(active))
	byExternal := make(map[string]uint64, len(active))
	for _, m := range active {
		ids = append(ids, m.ExternalID)
		byExternal[m.ExternalID] = m.ID
	}
	return ids, byExternal
}

func (w *Worker) insertEventsPrint(marketID uint64, p polymarketevents.Print) error {
	shares, err := decimal.NewFromString(p.Size)
	if err != nil {
		return err
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return err
	}
	side := strings.ToLower(p.Side)
	if side == "" {
		side = store.SideBuy
	}
	tradeRepo := store.NewTradeRepository(w.db)
	_, err = tradeRepo.InsertBatch([]store.TradeInput{{
		MarketID:      marketID,
		WalletAddress: "events-feed",
		Side:          side,
		Shares:        shares,
		Price:         price,
		TradedAt:      p.Timestamp,
	}})
	return err
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rand.Int63n(int64(span)))
}

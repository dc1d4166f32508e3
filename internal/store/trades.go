package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeRepository wraps trade inserts and the windowed reads the
// signal engine and profiler use for historical context.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// TradeInput is the normalized shape ingestion inserts.
type TradeInput struct {
	MarketID      uint64
	WalletAddress string
	Side          string
	Shares        decimal.Decimal
	Price         decimal.Decimal
	TradedAt      time.Time
	TradeHash     *string
}

// InsertBatch inserts trades with ON CONFLICT DO NOTHING against both
// the dedupe composite index and the optional hash index, and reports
// how many rows were actually accepted so the caller knows whether to
// advance its cursor.
func (r *TradeRepository) InsertBatch(inputs []TradeInput) (int64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	rows := make([]Trade, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, Trade{
			MarketID:      in.MarketID,
			WalletAddress: in.WalletAddress,
			Side:          in.Side,
			Shares:        in.Shares,
			Price:         in.Price,
			TradedAt:      in.TradedAt,
			TradeHash:     in.TradeHash,
		})
	}
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// SinceForSignals returns trades strictly after `after`, ordered by
// traded_at ascending, capped at limit — the signal engine's batch
// read.
func (r *TradeRepository) SinceForSignals(after *time.Time, limit int) ([]Trade, error) {
	q := r.db.Order("traded_at ASC, id ASC").Limit(limit)
	if after != nil {
		q = q.Where("traded_at > ?", *after)
	}
	var trades []Trade
	err := q.Find(&trades).Error
	return trades, err
}

// WalletFirstTradeAt returns the earliest traded_at for a wallet
// strictly before `before`, used to decide FRESH_WALLET_BIG_SIZE.
func (r *TradeRepository) WalletFirstTradeAt(wallet string, before time.Time) (*time.Time, error) {
	var t Trade
	err := r.db.Where("wallet_address = ? AND traded_at < ?", wallet, before).
		Order("traded_at ASC").First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t.TradedAt, nil
}

// WalletTradeCountSince counts a wallet's trades in [since, before).
func (r *TradeRepository) WalletTradeCountSince(wallet string, since, before time.Time) (int, error) {
	var count int64
	err := r.db.Model(&Trade{}).
		Where("wallet_address = ? AND traded_at >= ? AND traded_at < ?", wallet, since, before).
		Count(&count).Error
	return int(count), err
}

// MarketPriceHistory returns the last `limit` trades on a market
// strictly before `before`, ordered oldest-first — the pre-batch price
// ring the signal engine seeds THIN_MARKET_IMPACT with.
func (r *TradeRepository) MarketPriceHistory(marketID uint64, before time.Time, limit int) ([]Trade, error) {
	var trades []Trade
	err := r.db.Where("market_id = ? AND traded_at < ?", marketID, before).
		Order("traded_at DESC").Limit(limit).Find(&trades).Error
	if err != nil {
		return nil, err
	}
	// reverse into oldest-first order
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// NearestAfter returns the trade on a market whose traded_at is
// closest to target, constrained to [target-tolerance, target+tolerance].
// Used by the accuracy profiler's get-price-at-time lookup.
func (r *TradeRepository) NearestAfter(marketID uint64, target time.Time, tolerance time.Duration) (*Trade, error) {
	lo := target.Add(-tolerance)
	hi := target.Add(tolerance)
	var candidates []Trade
	err := r.db.Where("market_id = ? AND traded_at BETWEEN ? AND ?", marketID, lo, hi).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	bestDiff := absDuration(best.TradedAt.Sub(target))
	for _, c := range candidates[1:] {
		d := absDuration(c.TradedAt.Sub(target))
		if d < bestDiff {
			best, bestDiff = c, d
		}
	}
	return &best, nil
}

// UnevaluatedSince returns trades at or after `since` with notional at
// least minNotional — candidates for the accuracy profiler's pass.
func (r *TradeRepository) UnevaluatedSince(since time.Time, minNotional decimal.Decimal, limit int) ([]Trade, error) {
	var trades []Trade
	err := r.db.Where("traded_at >= ? AND (shares * price) >= ?", since, minNotional).
		Order("traded_at ASC").Limit(limit).Find(&trades).Error
	return trades, err
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

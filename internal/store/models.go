// Package store holds the GORM models and repositories backing the
// shared relational store every worker reads and writes.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market is an event being bet on. Created on first sighting by
// ingestion's upsert; mutated only there; never deleted by the core.
type Market struct {
	ID         uint64     `gorm:"primaryKey"`
	ExternalID string     `gorm:"column:external_id;size:128;uniqueIndex;not null"`
	Name       string     `gorm:"size:255;not null"`
	Category   string     `gorm:"size:100"`
	Status     string     `gorm:"size:50;not null;default:active;index:ix_markets_status"`
	ResolvedAt *time.Time `gorm:"index:ix_markets_resolved_at"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WalletProfile is operator-facing metadata about a wallet. The core
// never writes to it; it exists so Trade and SignalEvent can carry the
// same foreign key the original schema defines for the out-of-scope
// chat-bot's /track surface.
type WalletProfile struct {
	ID            uint64    `gorm:"primaryKey"`
	WalletAddress string    `gorm:"column:wallet_address;size:128;uniqueIndex;not null"`
	Label         string    `gorm:"size:255"`
	RiskLevel     string    `gorm:"column:risk_level;size:50"`
	IsWatched     bool      `gorm:"column:is_watched;default:false"`
	Notes         string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index:ix_wallet_profiles_created_at"`
}

// Trade is a single fill on a market. Append-only; never updated or
// deleted by the core. Deduplicated by the composite unique index on
// (market, wallet, traded_at, side, shares, price); trade_hash is a
// secondary unique index when the upstream feed supplies one.
type Trade struct {
	ID              uint64          `gorm:"primaryKey"`
	MarketID        uint64          `gorm:"column:market_id;not null;index:ix_trades_market_time,priority:1"`
	WalletProfileID *uint64         `gorm:"column:wallet_profile_id;index:ix_trades_wallet_time,priority:1"`
	WalletAddress   string          `gorm:"column:wallet_address;size:128;not null"`
	Side            string          `gorm:"size:16;not null"`
	Shares          decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Price           decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	TradedAt        time.Time       `gorm:"column:traded_at;not null;index:ix_trades_market_time,priority:2;index:ix_trades_wallet_time,priority:2;index:ix_trades_traded_at"`
	TradeHash       *string         `gorm:"column:trade_hash;size:128;uniqueIndex:uq_trades_trade_hash"`
	CreatedAt       time.Time

	Market Market `gorm:"foreignKey:MarketID;constraint:OnDelete:CASCADE"`
}

// TableName pins the table name to "trades", the table the raw-SQL
// uq_trades_dedupe index in Store.migrate is created on.
func (Trade) TableName() string { return "trades" }

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Signal type constants, one per detector named in the component design.
const (
	SignalFreshWalletBigSize       = "FRESH_WALLET_BIG_SIZE"
	SignalLowActivityWalletBigSize = "LOW_ACTIVITY_WALLET_BIG_SIZE"
	SignalRepeatEntries            = "REPEAT_ENTRIES"
	SignalThinMarketImpact         = "THIN_MARKET_IMPACT"
	SignalClustering               = "CLUSTERING"
	SignalEarlyPositioning         = "EARLY_POSITIONING"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// SignalEvent is a single detector emission. Append-only; keyed only by
// surrogate id.
type SignalEvent struct {
	ID              uint64              `gorm:"primaryKey"`
	MarketID        *uint64             `gorm:"column:market_id;index:ix_signal_events_market_created,priority:1"`
	WalletProfileID *uint64             `gorm:"column:wallet_profile_id;index:ix_signal_events_wallet_created,priority:1"`
	WalletAddress   *string             `gorm:"column:wallet_address;size:128;index:ix_signal_events_wallet_address_created,priority:1"`
	Side            *string             `gorm:"size:16"`
	SignalType      string              `gorm:"column:signal_type;size:64;not null"`
	Severity        *string             `gorm:"size:32"`
	Score           decimal.NullDecimal `gorm:"type:numeric(12,4)"`
	DetailsJSON     JSONMap             `gorm:"column:details_json;type:jsonb"`
	Payload         JSONMap             `gorm:"type:jsonb"`
	ObservedAt      *time.Time          `gorm:"column:observed_at;index:ix_signal_events_market_created,priority:2;index:ix_signal_events_wallet_created,priority:2;index:ix_signal_events_wallet_address_created,priority:2"`
	CreatedAt       time.Time
}

const (
	AlertStatusWatch = "watch"
	AlertStatusHigh  = "high"

	AlertEventTypeScoring = "scoring"
)

// Alert is the aggregated, deduplicated outcome of a scoring pass.
// Identity is the composite (market_id, side, event_type); enforced by
// a unique index so concurrent aggregator passes serialize on it.
type Alert struct {
	ID              uint64              `gorm:"primaryKey"`
	WalletProfileID *uint64             `gorm:"column:wallet_profile_id;index:ix_alerts_wallet_market_type,priority:1"`
	MarketID        *uint64             `gorm:"column:market_id;index:ix_alerts_wallet_market_type,priority:2;uniqueIndex:uq_alerts_market_side_event,priority:1"`
	Side            *string             `gorm:"size:16;uniqueIndex:uq_alerts_market_side_event,priority:2"`
	EventType       string              `gorm:"column:event_type;size:64;not null;index:ix_alerts_wallet_market_type,priority:3;uniqueIndex:uq_alerts_market_side_event,priority:3"`
	Message         *string             `gorm:"type:text"`
	Status          *string             `gorm:"size:32;index:ix_alerts_status"`
	Score           decimal.NullDecimal `gorm:"type:numeric(12,4)"`
	WhyJSON         JSONMap             `gorm:"column:why_json;type:jsonb"`
	SentAt          *time.Time          `gorm:"column:sent_at"`
	CreatedAt       time.Time           `gorm:"index:ix_alerts_created_at"`
	UpdatedAt       time.Time
}

// AppState is the durable key/value cursor table. Every cursor value,
// observed over time, is monotone non-decreasing.
type AppState struct {
	Key       string  `gorm:"primaryKey;size:100"`
	Value     *string `gorm:"type:text"`
	UpdatedAt time.Time
}

// BacktestResult is one row per alert recording the market's
// trade-derived price at alert creation time and at +15m/+1h/+4h, used
// only for offline evaluation; no worker reads it back.
type BacktestResult struct {
	AlertID   uint64              `gorm:"column:alert_id;primaryKey"`
	MarketID  *uint64             `gorm:"column:market_id;index:ix_backtest_results_alert"`
	Side      *string             `gorm:"size:16"`
	Score     decimal.NullDecimal `gorm:"type:numeric(12,4)"`
	AlertTime *time.Time          `gorm:"column:alert_time"`

	PriceT0  decimal.NullDecimal `gorm:"column:price_t0;type:numeric(24,12)"`
	Price15m decimal.NullDecimal `gorm:"column:price_15m;type:numeric(24,12)"`
	Price1h  decimal.NullDecimal `gorm:"column:price_1h;type:numeric(24,12)"`
	Price4h  decimal.NullDecimal `gorm:"column:price_4h;type:numeric(24,12)"`

	Delta15m decimal.NullDecimal `gorm:"column:delta_15m;type:numeric(24,12)"`
	Delta1h  decimal.NullDecimal `gorm:"column:delta_1h;type:numeric(24,12)"`
	Delta4h  decimal.NullDecimal `gorm:"column:delta_4h;type:numeric(24,12)"`
}

// WalletStats is the per-wallet accuracy record the profiler
// maintains and the signal engine's EARLY_POSITIONING detector reads.
type WalletStats struct {
	ID            uint64 `gorm:"primaryKey"`
	WalletAddress string `gorm:"column:wallet_address;size:128;uniqueIndex;not null"`

	TotalTrades     int `gorm:"column:total_trades;not null;default:0"`
	EvaluatedTrades int `gorm:"column:evaluated_trades;not null;default:0"`

	Correct15m int `gorm:"column:correct_15m;not null;default:0"`
	Correct1h  int `gorm:"column:correct_1h;not null;default:0"`
	Correct4h  int `gorm:"column:correct_4h;not null;default:0"`

	AccuracyScore       decimal.NullDecimal `gorm:"column:accuracy_score;type:numeric(5,4);index:ix_wallet_stats_accuracy"`
	AvgDeltaWhenCorrect decimal.NullDecimal `gorm:"column:avg_delta_when_correct;type:numeric(12,8)"`
	TotalNotional       decimal.NullDecimal `gorm:"column:total_notional;type:numeric(24,8)"`

	CurrentStreak int `gorm:"column:current_streak;not null;default:0"`
	BestStreak    int `gorm:"column:best_streak;not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index:ix_wallet_stats_updated"`
}

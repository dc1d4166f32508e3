package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BacktestRepository upserts one row per alert with its trade-derived
// price at creation and at +15m/+1h/+4h. Populated only by an offline
// evaluation entry point — no worker calls this automatically.
type BacktestRepository struct {
	db *gorm.DB
}

func NewBacktestRepository(db *gorm.DB) *BacktestRepository {
	return &BacktestRepository{db: db}
}

// Upsert writes or replaces the backtest row for an alert id.
func (r *BacktestRepository) Upsert(res *BacktestResult) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alert_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"market_id", "side", "score", "alert_time", "price_t0", "price_15m", "price_1h", "price_4h", "delta_15m", "delta_1h", "delta_4h"}),
	}).Create(res).Error
}

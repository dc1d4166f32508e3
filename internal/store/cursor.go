package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cursor-key constants, per the durable-cursor contract every worker
// shares through AppState.
const (
	CursorSignalsLastTradeAt  = "cursor:signals:last_trade_at"
	CursorScoringLastSignalID = "cursor:scoring:last_signal_id"
	CursorNotifierLastAlertTS = "cursor:notifier:last_alert_ts"
)

// CursorTradesKey builds the per-market ingestion cursor key.
func CursorTradesKey(marketExternalID string) string {
	return "cursor:trades:" + marketExternalID
}

// CursorRepository reads and writes AppState rows. Every write upserts
// so a worker can call Set without checking whether the row
// already exists.
type CursorRepository struct {
	db *gorm.DB
}

// NewCursorRepository builds a CursorRepository over the given handle,
// which may be the store's own DB or a transaction.
func NewCursorRepository(db *gorm.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// Get returns the cursor value and whether it was set.
func (r *CursorRepository) Get(key string) (string, bool, error) {
	var row AppState
	err := r.db.Where("key = ?", key).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if row.Value == nil {
		return "", false, nil
	}
	return *row.Value, true, nil
}

// Set upserts the cursor value by key.
func (r *CursorRepository) Set(key, value string) error {
	row := AppState{Key: key, Value: &value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

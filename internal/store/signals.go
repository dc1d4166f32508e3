package store

import (
	"time"

	"gorm.io/gorm"
)

// SignalRepository wraps signal event inserts and the scoring
// aggregator's windowed group-by read.
type SignalRepository struct {
	db *gorm.DB
}

func NewSignalRepository(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// InsertBatch appends signal events; SignalEvent is append-only so this
// is a plain insert, no conflict clause.
func (r *SignalRepository) InsertBatch(events []SignalEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.Create(&events).Error
}

// MaxID returns the greatest signal id currently stored, used to
// advance the scoring worker's has-new-work cursor.
func (r *SignalRepository) MaxID() (uint64, error) {
	var maxID uint64
	err := r.db.Model(&SignalEvent{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error
	return maxID, err
}

// RecentForMarketSide returns up to limit signal events for one
// (market, side) pair, most recent first, used by the notifier to
// summarize the evidence behind an alert.
func (r *SignalRepository) RecentForMarketSide(marketID uint64, side string, limit int) ([]SignalEvent, error) {
	var events []SignalEvent
	err := r.db.Where("market_id = ? AND side = ?", marketID, side).
		Order("observed_at DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// WithinWindow returns every signal observed within the window ending
// at now, for the scoring aggregator's pass. The cursor does not filter
// this query — see the scoring cursor design note.
func (r *SignalRepository) WithinWindow(now time.Time, window time.Duration) ([]SignalEvent, error) {
	since := now.Add(-window)
	var events []SignalEvent
	err := r.db.Where("COALESCE(observed_at, created_at) >= ?", since).
		Order("observed_at ASC, id ASC").Find(&events).Error
	return events, err
}

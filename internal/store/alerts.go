package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertRepository wraps the scoring aggregator's idempotent upsert and
// the notifier's cursor-gated selection.
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// UpsertInput is one group's aggregated outcome, keyed by
// (market_id, side, event_type=scoring).
type UpsertInput struct {
	MarketID uint64
	Side     string
	Status   string
	Score    decimal.Decimal
	Message  string
	WhyJSON  JSONMap
}

// Upsert writes one alert row per (market, side, scoring), updating in
// place on a repeat aggregation pass. Running this twice with the same
// input yields the same stored row — the idempotence law the scoring
// aggregator depends on.
func (r *AlertRepository) Upsert(in UpsertInput) error {
	side := in.Side
	msg := in.Message
	status := in.Status
	a := &Alert{
		MarketID:  &in.MarketID,
		Side:      &side,
		EventType: AlertEventTypeScoring,
		Status:    &status,
		Score:     decimal.NewNullDecimal(in.Score),
		WhyJSON:   in.WhyJSON,
		Message:   &msg,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "market_id"}, {Name: "side"}, {Name: "event_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "score", "why_json", "message", "updated_at"}),
	}).Create(a).Error
}

// SinceForNotifier returns up to limit alerts with updated_at > cursor,
// ordered ascending — the notifier's dispatch batch.
func (r *AlertRepository) SinceForNotifier(cursor *time.Time, limit int) ([]Alert, error) {
	q := r.db.Order("updated_at ASC").Limit(limit)
	if cursor != nil {
		q = q.Where("updated_at > ?", *cursor)
	}
	var alerts []Alert
	err := q.Find(&alerts).Error
	return alerts, err
}

package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketRepository wraps market upserts and lookups.
type MarketRepository struct {
	db *gorm.DB
}

func NewMarketRepository(db *gorm.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// MarketInput is the normalized shape ingestion upserts from the
// markets endpoint.
type MarketInput struct {
	ExternalID string
	Name       string
	Category   string
	Status     string
	ResolvedAt *time.Time
}

// Upsert inserts or updates a market by external_id, returning the
// stored row (with its surrogate id populated).
func (r *MarketRepository) Upsert(in MarketInput) (*Market, error) {
	m := &Market{
		ExternalID: in.ExternalID,
		Name:       in.Name,
		Category:   in.Category,
		Status:     in.Status,
		ResolvedAt: in.ResolvedAt,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "status", "resolved_at", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		// Some drivers don't return the id on a conflict-update path;
		// fetch it explicitly.
		if err := r.db.Where("external_id = ?", in.ExternalID).First(m).Error; err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ActiveMarkets returns every market whose status is not resolved,
// closed or inactive — the set the ingestion worker polls for trades.
func (r *MarketRepository) ActiveMarkets() ([]Market, error) {
	var markets []Market
	err := r.db.Where("status NOT IN ?", []string{"resolved", "closed", "inactive"}).Find(&markets).Error
	return markets, err
}

// ByID loads a market by its surrogate id.
func (r *MarketRepository) ByID(id uint64) (*Market, error) {
	var m Market
	err := r.db.First(&m, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &m, err
}

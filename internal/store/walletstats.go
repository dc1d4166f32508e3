package store

import (
	"gorm.io/gorm"
)

// WalletStatsRepository wraps the accuracy profiler's per-wallet
// upsert and the signal engine's read of a wallet's qualifying stats.
type WalletStatsRepository struct {
	db *gorm.DB
}

func NewWalletStatsRepository(db *gorm.DB) *WalletStatsRepository {
	return &WalletStatsRepository{db: db}
}

// Get returns a wallet's stats row, or nil if it has never been scored.
func (r *WalletStatsRepository) Get(wallet string) (*WalletStats, error) {
	var ws WalletStats
	err := r.db.Where("wallet_address = ?", wallet).First(&ws).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// Save replaces a wallet's stats row wholesale — the profiler always
// recomputes the full aggregate before writing, so a plain upsert by
// wallet_address is enough; no partial-column merge is needed.
func (r *WalletStatsRepository) Save(ws *WalletStats) error {
	existing, err := r.Get(ws.WalletAddress)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.Create(ws).Error
	}
	ws.ID = existing.ID
	ws.CreatedAt = existing.CreatedAt
	return r.db.Save(ws).Error
}

package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM connection shared by every repository.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres via the given DSN and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying GORM handle for callers that need direct
// access (the worker entrypoints pass it to the workers, which build
// their repositories on it).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// migrate auto-migrates every model (the alerts market/side/event_type
// unique index comes from Alert's struct tags), then lays down the
// trades dedupe composite unique index with raw SQL.
func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&Market{},
		&WalletProfile{},
		&Trade{},
		&SignalEvent{},
		&Alert{},
		&AppState{},
		&BacktestResult{},
		&WalletStats{},
	); err != nil {
		return err
	}

	return s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_trades_dedupe
		ON trades (market_id, wallet_address, traded_at, side, shares, price)
	`).Error
}

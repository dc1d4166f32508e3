package store

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTradeRepository_InsertBatchReportsAcceptedRows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "trades"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewTradeRepository(db)
	accepted, err := repo.InsertBatch([]TradeInput{
		{
			MarketID:      1,
			WalletAddress: "0xabc",
			Side:          "buy",
			Shares:        decimal.NewFromInt(100),
			Price:         decimal.NewFromFloat(0.5),
			TradedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), accepted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_InsertBatchEmptyIsNoop(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewTradeRepository(db)
	accepted, err := repo.InsertBatch(nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), accepted)
}

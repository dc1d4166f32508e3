package store

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAlertRepository_UpsertUsesOnConflictUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "alerts" .* ON CONFLICT \("market_id","side","event_type"\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewAlertRepository(db)
	err := repo.Upsert(UpsertInput{
		MarketID: 1,
		Side:     "buy",
		Status:   AlertStatusHigh,
		Score:    decimal.NewFromFloat(26.0),
		Message:  "score=26.00 status=high",
		WhyJSON:  JSONMap{"score": "26"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepository_SinceForNotifierFiltersByCursor(t *testing.T) {
	db, mock := newMockDB(t)
	cursor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "alerts" WHERE updated_at > .* ORDER BY updated_at ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type"}).AddRow(1, AlertEventTypeScoring))

	repo := NewAlertRepository(db)
	alerts, err := repo.SinceForNotifier(&cursor, 50)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

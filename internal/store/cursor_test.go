package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	// WithoutReturning keeps inserts as plain Exec statements so the
	// mock's result-based expectations match what GORM issues.
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		WithoutReturning:     true,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestCursorRepository_GetMissingReturnsNotOK(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "app_states"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))

	repo := NewCursorRepository(db)
	_, ok, err := repo.Get("cursor:signals:last_trade_at")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCursorRepository_GetReturnsStoredValue(t *testing.T) {
	db, mock := newMockDB(t)
	value := "2026-01-01T00:00:00Z"
	mock.ExpectQuery(`SELECT \* FROM "app_states"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("cursor:signals:last_trade_at", value))

	repo := NewCursorRepository(db)
	got, ok, err := repo.Get("cursor:signals:last_trade_at")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value, got)
}

func TestCursorRepository_SetUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "app_states"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewCursorRepository(db)
	err := repo.Set("cursor:signals:last_trade_at", "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

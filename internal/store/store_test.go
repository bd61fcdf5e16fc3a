package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"medtime-companion/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_Set(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "key_values"`) + `.*ON CONFLICT \("key"\) DO UPDATE`).
		WithArgs(KeyAlarms, `[]`, Any{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Set(context.Background(), KeyAlarms, `[]`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Get(t *testing.T) {
	testCases := []struct {
		name          string
		mockSetup     func(mock sqlmock.Sqlmock)
		expectedValue string
		expectedFound bool
		expectErr     bool
	}{
		{
			name: "Existing key",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "key_values" WHERE key = \$1 ORDER BY "key_values"."key" LIMIT \$[0-9]+`).
					WithArgs(KeyDeviceAddress, 1).
					WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
						AddRow(KeyDeviceAddress, "http://10.0.0.9", time.Now()))
			},
			expectedValue: "http://10.0.0.9",
			expectedFound: true,
		},
		{
			name: "Missing key",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "key_values" WHERE key = \$1`).
					WithArgs(KeyDeviceAddress, 1).
					WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))
			},
			expectedFound: false,
		},
		{
			name: "Database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "key_values"`).
					WillReturnError(assert.AnError)
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)
			tc.mockSetup(mock)

			value, found, err := s.Get(context.Background(), KeyDeviceAddress)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedValue, value)
				assert.Equal(t, tc.expectedFound, found)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_SQLiteRoundTrip(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.KeyValue{}))

	ctx := context.Background()
	s := NewGormStore(testDB)

	require.NoError(t, s.Set(ctx, KeyAlerts, `[{"id":1}]`))
	require.NoError(t, s.Set(ctx, KeyAlerts, `[{"id":2}]`))

	value, found, err := s.Get(ctx, KeyAlerts)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":2}]`, value, "Set should overwrite the whole value")

	require.NoError(t, s.Delete(ctx, KeyAlerts))
	_, found, err = s.Get(ctx, KeyAlerts)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, found, _ := m.Get(ctx, "k")
	assert.False(t, found)

	_ = m.Set(ctx, "k", "v")
	v, found, _ := m.Get(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, "v", v)

	_ = m.Delete(ctx, "k")
	_, found, _ = m.Get(ctx, "k")
	assert.False(t, found)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

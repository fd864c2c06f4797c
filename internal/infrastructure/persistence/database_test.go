package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type orderRow struct {
	ID          uint
	MerchantID  string
	OrderNumber string
}

func openMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock
}

func TestWithMerchantScopesQueries(t *testing.T) {
	db, mock := openMockDatabase(t)
	merchantID := "7f8c1a2e-0d34-4b1b-9a55-3dc0a1b44f01"

	mock.ExpectQuery(`SELECT \* FROM "order_rows" WHERE merchant_id = \$1`).
		WithArgs(merchantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "order_number"}).
			AddRow(1, merchantID, "SA-1001"))

	var rows []orderRow
	require.NoError(t, db.WithMerchant(merchantID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "SA-1001", rows[0].OrderNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithMerchantParameterizesHostileInput(t *testing.T) {
	db, mock := openMockDatabase(t)
	merchantID := "mrc'; DROP TABLE orders; --"

	mock.ExpectQuery(`SELECT \* FROM "order_rows" WHERE merchant_id = \$1`).
		WithArgs(merchantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "order_number"}))

	var rows []orderRow
	require.NoError(t, db.WithMerchant(merchantID).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithMerchantComposesWithChainedClauses(t *testing.T) {
	db, mock := openMockDatabase(t)
	merchantID := "7f8c1a2e-0d34-4b1b-9a55-3dc0a1b44f01"

	mock.ExpectQuery(`SELECT \* FROM "order_rows" WHERE merchant_id = \$1 AND order_number = \$2 ORDER BY id DESC LIMIT \$3`).
		WithArgs(merchantID, "SA-1002", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "order_number"}).
			AddRow(4, merchantID, "SA-1002"))

	var rows []orderRow
	err := db.WithMerchant(merchantID).
		Where("order_number = ?", "SA-1002").
		Order("id DESC").
		Limit(10).
		Find(&rows).Error
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithMerchantLeavesRootSessionUntouched(t *testing.T) {
	db, _ := openMockDatabase(t)
	root := db.DB

	scoped := db.WithMerchant("7f8c1a2e-0d34-4b1b-9a55-3dc0a1b44f01")

	assert.NotEqual(t, root, scoped)
	assert.Equal(t, root, db.DB)
}

func TestWithMerchantRejectsEmptyID(t *testing.T) {
	db, _ := openMockDatabase(t)

	// An unscoped query against merchant data is a programming error,
	// not something to fail soft on.
	assert.Panics(t, func() { db.WithMerchant("") })
}

func TestTransaction(t *testing.T) {
	t.Run("commits when the callback succeeds", func(t *testing.T) {
		db, mock := openMockDatabase(t)

		mock.ExpectBegin()
		// gorm inserts through Query on postgres to capture RETURNING.
		mock.ExpectQuery(`INSERT INTO "order_rows"`).
			WithArgs("7f8c1a2e-0d34-4b1b-9a55-3dc0a1b44f01", "SA-1003").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&orderRow{
				MerchantID:  "7f8c1a2e-0d34-4b1b-9a55-3dc0a1b44f01",
				OrderNumber: "SA-1003",
			}).Error
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the callback fails", func(t *testing.T) {
		db, mock := openMockDatabase(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	// gorm pings while opening, so expect that one before the explicit call.
	mock.ExpectPing()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectPing()

	db := &Database{DB: gormDB}
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	db, _ := openMockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)

	// sqlmock reports a live pool, so the invariants hold even if the
	// exact numbers are driver-dependent.
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
	assert.GreaterOrEqual(t, stats.WaitCount, int64(0))
}

func TestClose(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectClose()

	db := &Database{DB: gormDB}
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

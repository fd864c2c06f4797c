package merchant

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// TestModel is a simple model for testing merchant scoping
type TestModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"size:100"`
}

func (TestModel) TableName() string {
	return "test_models"
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestMerchantScope(t *testing.T) {
	merchantID := uuid.New()

	t.Run("applies merchant filter to query", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE merchant_id = \$1`).
			WithArgs(merchantID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "name"}))

		var results []TestModel
		err := db.Scopes(MerchantScope(merchantID)).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parameterized filter keeps merchant IDs isolated", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		otherID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE merchant_id = \$1`).
			WithArgs(merchantID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "name"}))
		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE merchant_id = \$1`).
			WithArgs(otherID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "name"}))

		var results []TestModel
		require.NoError(t, db.Scopes(MerchantScope(merchantID)).Find(&results).Error)
		require.NoError(t, db.Scopes(MerchantScope(otherID)).Find(&results).Error)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMerchantScope_WithAutoFilter(t *testing.T) {
	t.Run("callback skips queries already scoped to a merchant", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		EnableAutoMerchantFilter(db, false)

		scopedID := uuid.New()
		ctx := createCallbackTestContext(uuid.New().String())

		// Only the explicit scope's merchant should appear in the query.
		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE merchant_id = \$1`).
			WithArgs(scopedID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "merchant_id", "name"}))

		var results []TestModel
		err := db.WithContext(ctx).Scopes(MerchantScope(scopedID)).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

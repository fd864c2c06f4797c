package event

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasla/backend/internal/domain/shared"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openPublisherDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func newSyncedPublisher(t *testing.T) *OutboxPublisher {
	t.Helper()

	serializer := NewEventSerializer()
	serializer.Register("order.synced", &syncEvent{})
	return NewOutboxPublisher(serializer)
}

func expectOutboxInsert(mock sqlmock.Sqlmock, events ...shared.DomainEvent) {
	rows := sqlmock.NewRows([]string{"created_at", "updated_at"})
	for _, evt := range events {
		rows.AddRow(evt.OccurredAt(), evt.OccurredAt())
	}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).WillReturnRows(rows)
}

func TestOutboxPublisherWritesRowInsideTx(t *testing.T) {
	db, mock := openPublisherDB(t)
	publisher := newSyncedPublisher(t)

	evt := newSyncEvent("order.synced", uuid.New())

	mock.ExpectBegin()
	expectOutboxInsert(mock, evt)
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx, evt)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisherBatchesEvents(t *testing.T) {
	db, mock := openPublisherDB(t)
	publisher := newSyncedPublisher(t)

	merchantID := uuid.New()
	events := []shared.DomainEvent{
		newSyncEvent("order.synced", merchantID),
		newSyncEvent("order.synced", merchantID),
		newSyncEvent("order.synced", merchantID),
	}

	mock.ExpectBegin()
	expectOutboxInsert(mock, events...)
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx, events...)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisherNoEventsNoWrite(t *testing.T) {
	db, mock := openPublisherDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisherRowRollsBackWithTx(t *testing.T) {
	db, mock := openPublisherDB(t)
	publisher := newSyncedPublisher(t)

	evt := newSyncEvent("order.synced", uuid.New())

	mock.ExpectBegin()
	expectOutboxInsert(mock, evt)
	mock.ExpectRollback()

	syncErr := errors.New("ecommerce sync failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := publisher.PublishWithTx(context.Background(), tx, evt); err != nil {
			return err
		}
		return syncErr
	})

	require.ErrorIs(t, err, syncErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package events

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSink struct {
	published []OutboxMessage
	failWith  error
}

func (s *recordingSink) Publish(_ context.Context, msg OutboxMessage) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.published = append(s.published, msg)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "outbox.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&OutboxMessage{}))
	return db
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, Enqueue(tx, TypeOrderFilled, "1", OrderEvent{OrderID: 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&OutboxMessage{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRelayPublishesInOrder(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Enqueue(db, TypeOrderFilled, "1", OrderEvent{OrderID: 1, Symbol: "VIC"}))
	require.NoError(t, Enqueue(db, TypeOrderCancelled, "2", OrderEvent{OrderID: 2, Symbol: "FPT"}))

	sink := &recordingSink{}
	relay := NewRelay(db, sink, 0, 10, 3)

	n, err := relay.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.published, 2)
	assert.Equal(t, TypeOrderFilled, sink.published[0].EventType)
	assert.Contains(t, sink.published[0].Payload, `"symbol":"VIC"`)

	var pending int64
	require.NoError(t, db.Model(&OutboxMessage{}).Where("status = ?", StatusPending).Count(&pending).Error)
	assert.Zero(t, pending)

	// nothing left to relay
	n, err = relay.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayMarksFailedAfterMaxAttempts(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Enqueue(db, TypeReconciliationRequired, "9", OrderEvent{OrderID: 9}))

	sink := &recordingSink{failWith: errors.New("broker unavailable")}
	relay := NewRelay(db, sink, 0, 10, 2)

	for i := 0; i < 2; i++ {
		n, err := relay.RelayPending(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	var msg OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, StatusFailed, msg.Status)
	assert.Equal(t, 2, msg.Attempts)
	assert.Equal(t, "broker unavailable", msg.LastError)
}

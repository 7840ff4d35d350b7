package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(_ context.Context, records ...kafka.Record) []error {
	errs := make([]error, len(records))
	for i, r := range records {
		errs[i] = m.Called(r.Topic, string(r.Key), r.Headers).Error(0)
	}
	return errs
}

var relayConfig = config.OutboxConfig{BatchSize: 100, Interval: time.Second, MaxRetries: 10}

func TestEnqueue(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	ctx := middleware.WithRequestID(context.Background(), "req-42")
	db.ExpectExec("INSERT INTO transaction_outbox").
		WithArgs(kafka.EventOrderCompleted, []byte(`{"order_id":"o1"}`), "seller-1", "req-42").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = Enqueue(ctx, db, kafka.EventOrderCompleted, "seller-1", map[string]string{"order_id": "o1"})

	require.NoError(t, err)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestRelay_ProcessBatch(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	pub := &mockPublisher{}
	pub.On("Publish", kafka.TopicOrders, "seller-1", map[string]string{
		kafka.HeaderEventType:     kafka.EventOrderCompleted,
		kafka.HeaderCorrelationID: "req-1",
	}).Return(nil)
	pub.On("Publish", kafka.TopicAlerts, "user-1", map[string]string{
		kafka.HeaderEventType: kafka.EventAlertTriggered,
	}).Return(errors.New("broker down"))

	rows := pgxmock.NewRows([]string{"id", "event_type", "payload", "partition_key", "correlation_id", "retry_count"}).
		AddRow(int64(1), kafka.EventOrderCompleted, json.RawMessage(`{}`), "seller-1", "req-1", 0).
		AddRow(int64(2), kafka.EventAlertTriggered, json.RawMessage(`{}`), "user-1", "", 9)

	db.ExpectBegin()
	db.ExpectQuery("SELECT id, event_type, payload").WithArgs(100).WillReturnRows(rows)
	db.ExpectExec("UPDATE transaction_outbox").
		WithArgs(int64(2), "broker down", "failed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	db.ExpectExec("SET status = 'processed'").
		WithArgs([]int64{1}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	db.ExpectCommit()

	logger := zerolog.Nop()
	relay := NewRelay(db, pub, relayConfig, &logger)

	n, err := relay.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pub.AssertExpectations(t)
	assert.NoError(t, db.ExpectationsWereMet())
}

// Package outbox stores domain events in the same transaction as the state
// change that produced them; the relay ships them to Kafka afterwards.
package outbox

import (
	"context"
	"encoding/json"

	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/pkg/errors"
)

const insertEvent = `
	INSERT INTO transaction_outbox (event_type, payload, partition_key, correlation_id, status)
	VALUES ($1, $2, $3, $4, 'pending')`

// Enqueue writes an event on q, which should be the caller's transaction.
func Enqueue(ctx context.Context, q database.Querier, eventType, partitionKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal %s event", eventType)
	}

	if _, err := q.Exec(ctx, insertEvent, eventType, body, partitionKey, middleware.GetRequestIDFromContext(ctx)); err != nil {
		return errors.Wrapf(err, "enqueue %s event", eventType)
	}
	return nil
}

package outbox

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/rs/zerolog"
)

// Publisher is the part of kafka.Producer the relay needs.
type Publisher interface {
	Publish(ctx context.Context, records ...kafka.Record) []error
}

type Relay struct {
	db         database.TxBeginner
	publisher  Publisher
	logger     *zerolog.Logger
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewRelay(db database.TxBeginner, publisher Publisher, cfg config.OutboxConfig, logger *zerolog.Logger) *Relay {
	return &Relay{
		db:         db,
		publisher:  publisher,
		logger:     logger,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
	}
}

// record routes an outbox row to its topic, keyed by the row's partition key
// so one seller's or user's events stay ordered.
func record(e model.TransactionOutbox) kafka.Record {
	headers := map[string]string{kafka.HeaderEventType: e.EventType}
	if e.CorrelationID != "" {
		headers[kafka.HeaderCorrelationID] = e.CorrelationID
	}
	return kafka.Record{
		Topic:   kafka.TopicFor(e.EventType),
		Key:     []byte(e.PartitionKey),
		Value:   e.Payload,
		Headers: headers,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("Starting Outbox Relay")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Stopping Outbox Relay")
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Failed to process batch")
			}
		}
	}
}

// ProcessBatch publishes up to batchSize pending events and returns how many
// were delivered. Rows stay locked for the duration so concurrent relays skip them.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, partition_key, correlation_id, retry_count
		FROM transaction_outbox
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, err
	}

	var events []model.TransactionOutbox
	for rows.Next() {
		var e model.TransactionOutbox
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.PartitionKey, &e.CorrelationID, &e.RetryCount); err != nil {
			rows.Close()
			return 0, err
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	r.logger.Debug().Int("count", len(events)).Msg("Fetched outbox events")

	records := make([]kafka.Record, len(events))
	for i, e := range events {
		records[i] = record(e)
	}
	errs := r.publisher.Publish(ctx, records...)

	var processedIDs []int64
	for i, e := range events {
		if err := errs[i]; err != nil {
			r.logger.Error().Err(err).Int64("event_id", e.ID).Str("event_type", e.EventType).Msg("Failed to publish event to Kafka")
			metrics.OutboxEvents.WithLabelValues(e.EventType, "failed").Inc()
			if err := r.recordFailure(ctx, tx, e, err); err != nil {
				return 0, err
			}
			continue
		}
		metrics.OutboxEvents.WithLabelValues(e.EventType, "published").Inc()
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE transaction_outbox
			SET status = 'processed', updated_at = NOW()
			WHERE id = ANY($1)
		`, processedIDs); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(processedIDs), nil
}

func (r *Relay) recordFailure(ctx context.Context, q database.Querier, e model.TransactionOutbox, cause error) error {
	status := "pending"
	if e.RetryCount+1 >= r.maxRetries {
		status = "failed"
		r.logger.Error().Int64("event_id", e.ID).Str("event_type", e.EventType).Msg("Outbox event exhausted retries")
	}
	_, err := q.Exec(ctx, `
		UPDATE transaction_outbox
		SET retry_count = retry_count + 1, last_error = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, e.ID, cause.Error(), status)
	return err
}

package webhook

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Recorder deduplicates provider deliveries by event id.
type Recorder interface {
	RecordWebhook(ctx context.Context, eventID, eventType string, payload []byte) (bool, error)
	MarkWebhook(ctx context.Context, eventID, status string) error
}

type WebhookRepo struct {
	db database.Querier
}

func NewWebhookRepository(db database.Querier) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// RecordWebhook stores a delivery and reports whether it still needs
// processing. Redeliveries of a processed event return false; redeliveries
// of a failed one are handed back for another attempt.
func (r *WebhookRepo) RecordWebhook(ctx context.Context, eventID, eventType string, payload []byte) (bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO psp_webhooks (event_id, event_type, payload, status)
		VALUES ($1, $2, $3, 'received')
		ON CONFLICT (event_id) DO UPDATE SET updated_at = NOW()
		WHERE psp_webhooks.status <> 'processed'
		RETURNING id`, eventID, eventType, payload).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "record webhook")
	}
	return true, nil
}

func (r *WebhookRepo) MarkWebhook(ctx context.Context, eventID, status string) error {
	_, err := r.db.Exec(ctx, `UPDATE psp_webhooks SET status = $2, updated_at = NOW() WHERE event_id = $1`, eventID, status)
	return errors.Wrap(err, "mark webhook")
}

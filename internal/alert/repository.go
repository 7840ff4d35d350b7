package alert

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/outbox"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateAlert(ctx context.Context, a *model.PriceAlert) error
	GetAlert(ctx context.Context, id string) (*model.PriceAlert, error)
	ListAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error)
	DeleteAlert(ctx context.Context, id string) error
	ActiveAlerts(ctx context.Context, eventID string) ([]model.PriceAlert, error)
	UpdateLowest(ctx context.Context, id string, lowest *model.Money) error
	TriggerAlert(ctx context.Context, id string, lowest model.Money, at time.Time) (bool, error)
}

type AlertRepo struct {
	db database.TxBeginner
}

func NewAlertRepository(db database.TxBeginner) *AlertRepo {
	return &AlertRepo{db: db}
}

const alertColumns = `id::text, user_id, event_id, target_price, status, current_lowest, triggered_at, created_at`

func scanAlert(row pgx.Row) (*model.PriceAlert, error) {
	var a model.PriceAlert
	if err := row.Scan(&a.ID, &a.UserID, &a.EventID, &a.TargetPrice, &a.Status, &a.CurrentLowest, &a.TriggeredAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AlertRepo) CreateAlert(ctx context.Context, a *model.PriceAlert) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO price_alerts (id, user_id, event_id, target_price, status, current_lowest)
		VALUES ($1, $2, $3, $4, 'active', $5)
		RETURNING status, created_at`,
		a.ID, a.UserID, a.EventID, a.TargetPrice, a.CurrentLowest,
	).Scan(&a.Status, &a.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert price alert")
	}
	return nil
}

func (r *AlertRepo) GetAlert(ctx context.Context, id string) (*model.PriceAlert, error) {
	a, err := scanAlert(r.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("price alert %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get price alert")
	}
	return a, nil
}

func (r *AlertRepo) list(ctx context.Context, query string, args ...any) ([]model.PriceAlert, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list price alerts")
	}
	defer rows.Close()

	alerts := []model.PriceAlert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan price alert")
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (r *AlertRepo) ListAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	return r.list(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *AlertRepo) DeleteAlert(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM price_alerts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete price alert")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("price alert %s not found", id)
	}
	return nil
}

// ActiveAlerts lists active alerts for one event, or for every event when
// eventID is empty.
func (r *AlertRepo) ActiveAlerts(ctx context.Context, eventID string) ([]model.PriceAlert, error) {
	if eventID == "" {
		return r.list(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE status = 'active' ORDER BY event_id, created_at`)
	}
	return r.list(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE status = 'active' AND event_id = $1 ORDER BY created_at`, eventID)
}

func (r *AlertRepo) UpdateLowest(ctx context.Context, id string, lowest *model.Money) error {
	_, err := r.db.Exec(ctx, `UPDATE price_alerts SET current_lowest = $2 WHERE id = $1 AND status = 'active'`, id, lowest)
	return errors.Wrap(err, "update alert lowest price")
}

// TriggerAlert flips an active alert and enqueues alert.triggered in the same
// transaction. It reports false when the alert was no longer active.
func (r *AlertRepo) TriggerAlert(ctx context.Context, id string, lowest model.Money, at time.Time) (bool, error) {
	triggered := false
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		a, err := scanAlert(tx.QueryRow(ctx, `
			UPDATE price_alerts SET status = 'triggered', current_lowest = $2, triggered_at = $3
			WHERE id = $1 AND status = 'active'
			RETURNING `+alertColumns, id, lowest, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "trigger price alert")
		}
		triggered = true
		return outbox.Enqueue(ctx, tx, kafka.EventAlertTriggered, a.UserID, types.AlertTriggeredEvent{
			AlertID:       a.ID,
			UserID:        a.UserID,
			EventID:       a.EventID,
			TargetPrice:   a.TargetPrice,
			CurrentLowest: lowest,
		})
	})
	return triggered, err
}

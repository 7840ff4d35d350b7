package reservation

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Repository interface {
	ReserveTicket(ctx context.Context, ticketID, buyerID string, until time.Time) (*model.Ticket, error)
	ReleaseTicket(ctx context.Context, ticketID, buyerID string, version int64) (bool, error)
	ExpireReservations(ctx context.Context, cutoff time.Time) ([]string, error)
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
}

type ReservationRepo struct {
	db database.TxBeginner
}

func NewReservationRepository(db database.TxBeginner) *ReservationRepo {
	return &ReservationRepo{db: db}
}

const ticketColumns = `id, event_id, category, section, row_label, seat, price, original_price, currency,
	seller_id, status, reserved_by, reserved_until, version, created_at, updated_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.EventID, &t.Category, &t.Section, &t.Row, &t.Seat, &t.Price, &t.OriginalPrice,
		&t.Currency, &t.SellerID, &t.Status, &t.ReservedBy, &t.ReservedUntil, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ReserveTicket is the only way a ticket leaves the available pool for a
// buyer. It returns nil when the guard did not match.
func (r *ReservationRepo) ReserveTicket(ctx context.Context, ticketID, buyerID string, until time.Time) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `
		UPDATE tickets
		SET status = 'reserved', reserved_by = $2, reserved_until = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'available' AND seller_id <> $2
		RETURNING `+ticketColumns, ticketID, buyerID, until))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reserve ticket")
	}
	return t, nil
}

func (r *ReservationRepo) ReleaseTicket(ctx context.Context, ticketID, buyerID string, version int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tickets
		SET status = 'available', reserved_by = NULL, reserved_until = NULL, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'reserved' AND reserved_by = $2 AND version = $3`,
		ticketID, buyerID, version)
	if err != nil {
		return false, errors.Wrap(err, "release ticket")
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireReservations returns lapsed reservations to stock. Tickets still
// held by an open checkout session are left to the checkout sweep, which
// asks the provider whether the buyer paid before letting go.
func (r *ReservationRepo) ExpireReservations(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE tickets
		SET status = 'available', reserved_by = NULL, reserved_until = NULL, version = version + 1, updated_at = NOW()
		WHERE status = 'reserved' AND reserved_until < $1
			AND NOT EXISTS (
				SELECT 1 FROM checkout_sessions cs
				WHERE cs.ticket_id = tickets.id AND cs.status = 'open'
			)
		RETURNING id::text`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "expire reservations")
	}
	released, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect expired tickets")
	}
	return released, nil
}

func (r *ReservationRepo) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get ticket")
	}
	return t, nil
}

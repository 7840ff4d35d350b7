package checkout

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/ledger"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/outbox"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateSession(ctx context.Context, cs *model.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*model.CheckoutSession, error)
	FinalizeSession(ctx context.Context, o *model.Order) (*model.Order, bool, error)
	ExpireSession(ctx context.Context, id string) (bool, error)
	FailSession(ctx context.Context, id string) (bool, error)
	StaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	OrderBySession(ctx context.Context, sessionID string) (*model.Order, error)
}

type CheckoutRepo struct {
	db database.TxBeginner
}

func NewCheckoutRepository(db database.TxBeginner) *CheckoutRepo {
	return &CheckoutRepo{db: db}
}

const sessionColumns = `id, ticket_id::text, event_id, seller_id, buyer_id, ticket_price, commission, amount, currency,
	status, redirect_url, created_at, expires_at, completed_at`

const orderColumns = `id::text, session_id, ticket_id::text, event_id, buyer_id, seller_id, ticket_price, commission,
	total_amount, currency, status, qr_payload, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.SessionID, &o.TicketID, &o.EventID, &o.BuyerID, &o.SellerID, &o.TicketPrice,
		&o.Commission, &o.TotalAmount, &o.Currency, &o.Status, &o.QRPayload, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *CheckoutRepo) CreateSession(ctx context.Context, cs *model.CheckoutSession) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO checkout_sessions
			(id, ticket_id, event_id, seller_id, buyer_id, ticket_price, commission, amount, currency, status, redirect_url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open', $10, $11)
		RETURNING status, created_at`,
		cs.ID, cs.TicketID, cs.EventID, cs.SellerID, cs.BuyerID, cs.TicketPrice, cs.Commission, cs.Amount,
		cs.Currency, cs.RedirectURL, cs.ExpiresAt,
	).Scan(&cs.Status, &cs.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("ticket %s already has an open checkout", cs.TicketID)
	}
	if err != nil {
		return errors.Wrap(err, "insert checkout session")
	}
	return nil
}

func (r *CheckoutRepo) GetSession(ctx context.Context, id string) (*model.CheckoutSession, error) {
	var cs model.CheckoutSession
	err := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = $1`, id).Scan(
		&cs.ID, &cs.TicketID, &cs.EventID, &cs.SellerID, &cs.BuyerID, &cs.TicketPrice, &cs.Commission, &cs.Amount,
		&cs.Currency, &cs.Status, &cs.RedirectURL, &cs.CreatedAt, &cs.ExpiresAt, &cs.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("checkout session %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get checkout session")
	}
	return &cs, nil
}

func (r *CheckoutRepo) OrderBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	o, err := orderBySession(ctx, r.db, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no order for checkout session %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order by session")
	}
	return o, nil
}

func orderBySession(ctx context.Context, q database.Querier, sessionID string) (*model.Order, error) {
	return scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE session_id = $1`, sessionID))
}

// FinalizeSession runs the paid transition in one transaction: session
// open to paid, ticket reserved to sold, order and sale entry inserted,
// order.completed enqueued. A session that already produced an order returns
// that order with created false; a session closed without an order returns nil.
func (r *CheckoutRepo) FinalizeSession(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	var (
		result  *model.Order
		created bool
	)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var ticketID, buyerID string
		err := tx.QueryRow(ctx, `
			UPDATE checkout_sessions SET status = 'paid', completed_at = NOW()
			WHERE id = $1 AND status = 'open'
			RETURNING ticket_id::text, buyer_id`, o.SessionID).Scan(&ticketID, &buyerID)
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := orderBySession(ctx, tx, o.SessionID)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "load existing order")
			}
			result = existing
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "mark session paid")
		}

		tag, err := tx.Exec(ctx, `
			UPDATE tickets SET status = 'sold', version = version + 1, updated_at = NOW()
			WHERE id = $1 AND status = 'reserved' AND reserved_by = $2`, ticketID, buyerID)
		if err != nil {
			return errors.Wrap(err, "mark ticket sold")
		}
		if tag.RowsAffected() != 1 {
			return apperr.InvalidState("ticket %s is not reserved by the buyer", ticketID)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO orders
				(id, session_id, ticket_id, event_id, buyer_id, seller_id, ticket_price, commission, total_amount, currency, status, qr_payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'completed', $11)
			RETURNING status, created_at, updated_at`,
			o.ID, o.SessionID, o.TicketID, o.EventID, o.BuyerID, o.SellerID, o.TicketPrice, o.Commission,
			o.TotalAmount, o.Currency, o.QRPayload,
		).Scan(&o.Status, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{SellerID: o.SellerID, OrderID: o.ID, Kind: model.LedgerSale, Amount: o.TicketPrice}); err != nil {
			return err
		}

		err = outbox.Enqueue(ctx, tx, kafka.EventOrderCompleted, o.ID, types.OrderCompletedEvent{
			OrderID:     o.ID,
			TicketID:    o.TicketID,
			EventID:     o.EventID,
			BuyerID:     o.BuyerID,
			SellerID:    o.SellerID,
			TicketPrice: o.TicketPrice,
			Commission:  o.Commission,
			TotalAmount: o.TotalAmount,
			Currency:    o.Currency,
			QRPayload:   o.QRPayload,
			CompletedAt: o.CreatedAt,
		})
		if err != nil {
			return err
		}

		result, created = o, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// closeSession moves an open session to status and hands its ticket back.
func (r *CheckoutRepo) closeSession(ctx context.Context, id string, status model.CheckoutStatus) (bool, error) {
	closed := false
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var ticketID, buyerID string
		err := tx.QueryRow(ctx, `
			UPDATE checkout_sessions SET status = $2
			WHERE id = $1 AND status = 'open'
			RETURNING ticket_id::text, buyer_id`, id, status).Scan(&ticketID, &buyerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "mark session %s", status)
		}

		if err := releaseTicket(ctx, tx, ticketID, buyerID); err != nil {
			return err
		}
		closed = true
		return nil
	})
	return closed, err
}

func releaseTicket(ctx context.Context, q database.Querier, ticketID, buyerID string) error {
	_, err := q.Exec(ctx, `
		UPDATE tickets
		SET status = 'available', reserved_by = NULL, reserved_until = NULL, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'reserved' AND reserved_by = $2`, ticketID, buyerID)
	return errors.Wrap(err, "release ticket")
}

func (r *CheckoutRepo) ExpireSession(ctx context.Context, id string) (bool, error) {
	return r.closeSession(ctx, id, model.CheckoutExpired)
}

func (r *CheckoutRepo) FailSession(ctx context.Context, id string) (bool, error) {
	return r.closeSession(ctx, id, model.CheckoutFailed)
}

// StaleSessions lists open sessions whose deadline is before cutoff, oldest
// first. It changes nothing; the caller settles each one with the provider.
func (r *CheckoutRepo) StaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM checkout_sessions
		WHERE status = 'open' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list stale sessions")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect stale sessions")
	}
	return ids, nil
}

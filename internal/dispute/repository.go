package dispute

import (
	"context"

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
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	OpenDispute(ctx context.Context, d *model.Dispute) error
	GetDispute(ctx context.Context, id string) (*model.Dispute, error)
	ResolveDispute(ctx context.Context, id string, status model.DisputeStatus, resolution, resolvedBy string) (*model.Dispute, error)
	ListDisputes(ctx context.Context, status model.DisputeStatus) ([]model.Dispute, error)
	ListDisputesByUser(ctx context.Context, userID string) ([]model.Dispute, error)
}

type DisputeRepo struct {
	db database.TxBeginner
}

func NewDisputeRepository(db database.TxBeginner) *DisputeRepo {
	return &DisputeRepo{db: db}
}

const disputeColumns = `id::text, order_id::text, buyer_id, seller_id, reason, description, status, resolution,
	resolved_by, amount, created_at, resolved_at`

func scanDispute(row pgx.Row) (*model.Dispute, error) {
	var d model.Dispute
	err := row.Scan(&d.ID, &d.OrderID, &d.BuyerID, &d.SellerID, &d.Reason, &d.Description, &d.Status,
		&d.Resolution, &d.ResolvedBy, &d.Amount, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func event(d *model.Dispute) types.DisputeEvent {
	return types.DisputeEvent{
		DisputeID:  d.ID,
		OrderID:    d.OrderID,
		BuyerID:    d.BuyerID,
		SellerID:   d.SellerID,
		Amount:     d.Amount,
		Status:     d.Status,
		Resolution: d.Resolution,
	}
}

func (r *DisputeRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := r.db.QueryRow(ctx, `
		SELECT id::text, buyer_id, seller_id, ticket_price, status, created_at
		FROM orders WHERE id = $1`, id).Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.TicketPrice, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return &o, nil
}

// OpenDispute moves a completed order to disputed and holds its price out
// of the seller balance.
func (r *DisputeRepo) OpenDispute(ctx context.Context, d *model.Dispute) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders SET status = 'disputed', updated_at = NOW()
			WHERE id = $1 AND status = 'completed'`, d.OrderID)
		if err != nil {
			return errors.Wrap(err, "mark order disputed")
		}
		if tag.RowsAffected() != 1 {
			return apperr.InvalidState("order %s is not completed", d.OrderID)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO disputes (id, order_id, buyer_id, seller_id, reason, description, status, amount)
			VALUES ($1, $2, $3, $4, $5, $6, 'open', $7)
			RETURNING status, created_at`,
			d.ID, d.OrderID, d.BuyerID, d.SellerID, d.Reason, d.Description, d.Amount,
		).Scan(&d.Status, &d.CreatedAt)
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("order %s already has an open dispute", d.OrderID)
		}
		if err != nil {
			return errors.Wrap(err, "insert dispute")
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{SellerID: d.SellerID, OrderID: d.OrderID, Kind: model.LedgerDisputeHold, Amount: -d.Amount}); err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, kafka.EventDisputeOpened, d.OrderID, event(d))
	})
}

func (r *DisputeRepo) GetDispute(ctx context.Context, id string) (*model.Dispute, error) {
	d, err := scanDispute(r.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("dispute %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get dispute")
	}
	return d, nil
}

// ResolveDispute releases the hold and either refunds the order (resolved)
// or returns it to completed (closed).
func (r *DisputeRepo) ResolveDispute(ctx context.Context, id string, status model.DisputeStatus, resolution, resolvedBy string) (*model.Dispute, error) {
	var d *model.Dispute
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		d, err = scanDispute(tx.QueryRow(ctx, `
			UPDATE disputes SET status = $2, resolution = $3, resolved_by = $4, resolved_at = NOW()
			WHERE id = $1 AND status = 'open'
			RETURNING `+disputeColumns, id, status, resolution, resolvedBy))
		if errors.Is(err, pgx.ErrNoRows) {
			current, err := scanDispute(tx.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("dispute %s not found", id)
			}
			if err != nil {
				return errors.Wrap(err, "load dispute")
			}
			return apperr.InvalidState("dispute %s is already %s", id, current.Status)
		}
		if err != nil {
			return errors.Wrap(err, "resolve dispute")
		}

		orderStatus, eventType := model.OrderCompleted, kafka.EventDisputeClosed
		if status == model.DisputeResolved {
			orderStatus, eventType = model.OrderRefunded, kafka.EventDisputeRefunded
		}

		tag, err := tx.Exec(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'disputed'`, d.OrderID, orderStatus)
		if err != nil {
			return errors.Wrap(err, "update disputed order")
		}
		if tag.RowsAffected() != 1 {
			return apperr.InvalidState("order %s is not disputed", d.OrderID)
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{SellerID: d.SellerID, OrderID: d.OrderID, Kind: model.LedgerDisputeRelease, Amount: d.Amount}); err != nil {
			return err
		}
		if status == model.DisputeResolved {
			if err := ledger.Append(ctx, tx, ledger.Entry{SellerID: d.SellerID, OrderID: d.OrderID, Kind: model.LedgerRefund, Amount: -d.Amount}); err != nil {
				return err
			}
		}
		return outbox.Enqueue(ctx, tx, eventType, d.OrderID, event(d))
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DisputeRepo) list(ctx context.Context, where string, args ...any) ([]model.Dispute, error) {
	rows, err := r.db.Query(ctx, `SELECT `+disputeColumns+` FROM disputes `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list disputes")
	}
	defer rows.Close()

	disputes := []model.Dispute{}
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan dispute")
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

func (r *DisputeRepo) ListDisputes(ctx context.Context, status model.DisputeStatus) ([]model.Dispute, error) {
	if status == "" {
		return r.list(ctx, "")
	}
	return r.list(ctx, "WHERE status = $1", status)
}

func (r *DisputeRepo) ListDisputesByUser(ctx context.Context, userID string) ([]model.Dispute, error) {
	return r.list(ctx, "WHERE buyer_id = $1 OR seller_id = $1", userID)
}

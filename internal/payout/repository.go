package payout

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
	CreatePayout(ctx context.Context, p *model.Payout) error
	CompletePayout(ctx context.Context, id string) (*model.Payout, error)
	ListPayouts(ctx context.Context) ([]model.Payout, error)
}

type PayoutRepo struct {
	db database.TxBeginner
}

func NewPayoutRepository(db database.TxBeginner) *PayoutRepo {
	return &PayoutRepo{db: db}
}

// CreatePayout serialises payouts of one seller on a transaction-scoped
// advisory lock and checks the balance under it.
func (r *PayoutRepo) CreatePayout(ctx context.Context, p *model.Payout) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.SellerID); err != nil {
			return errors.Wrap(err, "lock seller balance")
		}

		b, err := ledger.Balance(ctx, tx, p.SellerID)
		if err != nil {
			return err
		}
		if !ledger.Sufficient(b, p.Amount) {
			return apperr.InsufficientBalance("payout of %s exceeds pending balance %s", p.Amount, b.PendingBalance)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO payouts (id, seller_id, amount, status, notes, created_by)
			VALUES ($1, $2, $3, 'pending', $4, $5)
			RETURNING status, created_at`,
			p.ID, p.SellerID, p.Amount, p.Notes, p.CreatedBy,
		).Scan(&p.Status, &p.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert payout")
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{SellerID: p.SellerID, PayoutID: p.ID, Kind: model.LedgerPayout, Amount: -p.Amount}); err != nil {
			return err
		}

		return outbox.Enqueue(ctx, tx, kafka.EventPayoutCreated, p.SellerID, types.PayoutEvent{
			PayoutID: p.ID, SellerID: p.SellerID, Amount: p.Amount, Status: p.Status,
		})
	})
}

const payoutColumns = `p.id::text, p.seller_id, COALESCE(u.name, ''), COALESCE(u.email, ''), p.amount, p.status, p.notes,
	p.created_by, p.created_at, p.completed_at`

func scanPayout(row pgx.Row) (*model.Payout, error) {
	var p model.Payout
	err := row.Scan(&p.ID, &p.SellerID, &p.SellerName, &p.SellerEmail, &p.Amount, &p.Status, &p.Notes,
		&p.CreatedBy, &p.CreatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PayoutRepo) CompletePayout(ctx context.Context, id string) (*model.Payout, error) {
	var p *model.Payout
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payouts SET status = 'completed', completed_at = NOW()
			WHERE id = $1 AND status = 'pending'`, id)
		if err != nil {
			return errors.Wrap(err, "complete payout")
		}

		p, err = scanPayout(tx.QueryRow(ctx, `SELECT `+payoutColumns+`
			FROM payouts p LEFT JOIN users u ON u.id = p.seller_id WHERE p.id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("payout %s not found", id)
		}
		if err != nil {
			return errors.Wrap(err, "load payout")
		}
		if tag.RowsAffected() != 1 {
			return apperr.InvalidState("payout %s is already %s", id, p.Status)
		}

		return outbox.Enqueue(ctx, tx, kafka.EventPayoutCompleted, p.SellerID, types.PayoutEvent{
			PayoutID: p.ID, SellerID: p.SellerID, Amount: p.Amount, Status: p.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PayoutRepo) ListPayouts(ctx context.Context) ([]model.Payout, error) {
	rows, err := r.db.Query(ctx, `SELECT `+payoutColumns+`
		FROM payouts p LEFT JOIN users u ON u.id = p.seller_id
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list payouts")
	}
	defer rows.Close()

	payouts := []model.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan payout")
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

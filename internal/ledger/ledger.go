// Package ledger holds the seller balance view and the append-only ledger.
// Both are read inside the callers' transactions; nothing here stores a
// running balance.
package ledger

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/pkg/errors"
)

// Entry is a movement to append. OrderID and PayoutID may be empty.
type Entry struct {
	SellerID string
	OrderID  string
	PayoutID string
	Kind     model.LedgerKind
	Amount   model.Money
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Append(ctx context.Context, q database.Querier, e Entry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO ledger_entries (seller_id, order_id, payout_id, kind, amount)
		VALUES ($1, $2, $3, $4, $5)`,
		e.SellerID, nullable(e.OrderID), nullable(e.PayoutID), e.Kind, e.Amount)
	if err != nil {
		return errors.Wrapf(err, "append %s ledger entry", e.Kind)
	}
	return nil
}

const balanceQuery = `
	SELECT
		COALESCE((SELECT SUM(ticket_price) FROM orders WHERE seller_id = $1 AND status = 'completed'), 0)::bigint,
		COALESCE((SELECT SUM(amount) FROM payouts WHERE seller_id = $1 AND status = 'pending'), 0)::bigint,
		COALESCE((SELECT SUM(amount) FROM payouts WHERE seller_id = $1 AND status = 'completed'), 0)::bigint,
		COALESCE((SELECT SUM(ticket_price) FROM orders WHERE seller_id = $1 AND status = 'refunded'), 0)::bigint,
		(SELECT COUNT(*) FROM orders WHERE seller_id = $1 AND status = 'completed')`

// Balance computes the derived balance of one seller.
func Balance(ctx context.Context, q database.Querier, sellerID string) (*model.SellerBalance, error) {
	b := &model.SellerBalance{SellerID: sellerID}
	err := q.QueryRow(ctx, balanceQuery, sellerID).
		Scan(&b.Earned, &b.InFlight, &b.TotalPaid, &b.Refunded, &b.OrdersCount)
	if err != nil {
		return nil, errors.Wrap(err, "compute seller balance")
	}
	Derive(b)
	return b, nil
}

// Derive fills PendingBalance from the other components.
func Derive(b *model.SellerBalance) {
	b.PendingBalance = b.Earned - b.InFlight - b.TotalPaid
}

// Sum totals the ledger of one seller. It must equal the derived pending balance.
func Sum(ctx context.Context, q database.Querier, sellerID string) (model.Money, error) {
	var total model.Money
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::bigint FROM ledger_entries WHERE seller_id = $1`, sellerID).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "sum ledger")
	}
	return total, nil
}

// Compare builds the reconciliation record of a seller.
func Compare(b *model.SellerBalance, ledgerTotal model.Money) *model.Discrepancy {
	return &model.Discrepancy{
		SellerID:       b.SellerID,
		ExpectedAmount: b.PendingBalance,
		ActualAmount:   ledgerTotal,
		Matched:        b.PendingBalance == ledgerTotal,
	}
}

// Sufficient reports whether amount can be paid out of b.
func Sufficient(b *model.SellerBalance, amount model.Money) bool {
	return amount > 0 && amount <= b.PendingBalance
}

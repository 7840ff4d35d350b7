package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/ledger"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Repository interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	SellerBalance(ctx context.Context, sellerID string) (*model.SellerBalance, error)
	SellerBalances(ctx context.Context) ([]model.SellerBalance, error)
	LedgerTotal(ctx context.Context, sellerID string) (model.Money, error)
	Dashboard(ctx context.Context, recent int) (*model.OwnerDashboard, error)
	Stats(ctx context.Context) (*model.AdminStats, error)
}

type OrderRepo struct {
	db database.Querier
}

func NewOrderRepository(db database.Querier) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `o.id::text, o.session_id, o.ticket_id::text, o.event_id, o.buyer_id, o.seller_id, o.ticket_price,
	o.commission, o.total_amount, o.currency, o.status, o.qr_payload, o.created_at, o.updated_at, COALESCE(u.email, '')`

const orderFrom = ` FROM orders o LEFT JOIN users u ON u.id = o.buyer_id`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.SessionID, &o.TicketID, &o.EventID, &o.BuyerID, &o.SellerID, &o.TicketPrice,
		&o.Commission, &o.TotalAmount, &o.Currency, &o.Status, &o.QRPayload, &o.CreatedAt, &o.UpdatedAt, &o.BuyerEmail)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func (r *OrderRepo) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return r.ListOrders(ctx, model.OrderFilter{BuyerID: buyerID})
}

func (r *OrderRepo) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("o.status = $%d", f.Status)
	}
	if f.SellerID != "" {
		add("o.seller_id = $%d", f.SellerID)
	}
	if f.BuyerID != "" {
		add("o.buyer_id = $%d", f.BuyerID)
	}

	query := `SELECT ` + orderColumns + orderFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY o.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *OrderRepo) SellerBalance(ctx context.Context, sellerID string) (*model.SellerBalance, error) {
	return ledger.Balance(ctx, r.db, sellerID)
}

func (r *OrderRepo) LedgerTotal(ctx context.Context, sellerID string) (model.Money, error) {
	return ledger.Sum(ctx, r.db, sellerID)
}

const sellerBalancesQuery = `
	WITH sellers AS (
		SELECT id FROM users WHERE role = 'seller'
		UNION
		SELECT DISTINCT seller_id FROM orders
	)
	SELECT s.id, COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.kyc_status, 'none'),
		COALESCE(o.earned, 0)::bigint, COALESCE(p.in_flight, 0)::bigint, COALESCE(p.paid, 0)::bigint,
		COALESCE(o.refunded, 0)::bigint, COALESCE(o.completed, 0)
	FROM sellers s
	LEFT JOIN users u ON u.id = s.id
	LEFT JOIN (
		SELECT seller_id,
			SUM(ticket_price) FILTER (WHERE status = 'completed') AS earned,
			SUM(ticket_price) FILTER (WHERE status = 'refunded') AS refunded,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed
		FROM orders GROUP BY seller_id
	) o ON o.seller_id = s.id
	LEFT JOIN (
		SELECT seller_id,
			SUM(amount) FILTER (WHERE status = 'pending') AS in_flight,
			SUM(amount) FILTER (WHERE status = 'completed') AS paid
		FROM payouts GROUP BY seller_id
	) p ON p.seller_id = s.id
	ORDER BY 5 DESC`

func (r *OrderRepo) SellerBalances(ctx context.Context) ([]model.SellerBalance, error) {
	rows, err := r.db.Query(ctx, sellerBalancesQuery)
	if err != nil {
		return nil, errors.Wrap(err, "list seller balances")
	}
	defer rows.Close()

	balances := []model.SellerBalance{}
	for rows.Next() {
		var b model.SellerBalance
		if err := rows.Scan(&b.SellerID, &b.Name, &b.Email, &b.KYCStatus, &b.Earned, &b.InFlight, &b.TotalPaid, &b.Refunded, &b.OrdersCount); err != nil {
			return nil, errors.Wrap(err, "scan seller balance")
		}
		ledger.Derive(&b)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *OrderRepo) Dashboard(ctx context.Context, recent int) (*model.OwnerDashboard, error) {
	d := &model.OwnerDashboard{}

	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)::bigint,
			COALESCE(SUM(commission) FILTER (WHERE status = 'completed'), 0)::bigint,
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'disputed'),
			COUNT(*) FILTER (WHERE status = 'refunded')
		FROM orders`).Scan(&d.Revenue.Total, &d.Revenue.Commission, &d.Orders.Pending, &d.Orders.Completed,
		&d.Orders.Cancelled, &d.Orders.Disputed, &d.Orders.Refunded)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate orders")
	}

	err = r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0)::bigint,
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)::bigint
		FROM payouts`).Scan(&d.Payouts.PendingAmount, &d.Payouts.PendingCount, &d.Payouts.TotalPaid)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate payouts")
	}

	if d.RecentOrders, err = r.ListOrders(ctx, model.OrderFilter{Limit: recent}); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *OrderRepo) Stats(ctx context.Context) (*model.AdminStats, error) {
	st := &model.AdminStats{}
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE role = 'seller' AND kyc_status = 'verified'),
			(SELECT COUNT(*) FROM tickets WHERE status = 'sold'),
			(SELECT COALESCE(SUM(total_amount), 0)::bigint FROM orders WHERE status = 'completed'),
			(SELECT COALESCE(SUM(commission), 0)::bigint FROM orders WHERE status = 'completed'),
			(SELECT COUNT(*) FROM disputes WHERE status = 'open')`).Scan(
		&st.TotalUsers, &st.VerifiedSellers, &st.SoldTickets, &st.TotalRevenue, &st.TotalCommission, &st.OpenDisputes)
	if err != nil {
		return nil, errors.Wrap(err, "admin stats")
	}
	return st, nil
}

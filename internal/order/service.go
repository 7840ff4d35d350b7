// Package order serves paid orders and the seller balance view derived from
// them.
package order

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/catalog"
	"github.com/Niiaks/ticketcore/internal/ledger"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
)

const recentOrders = 10

type OrderService struct {
	repo    Repository
	catalog catalog.Catalog
}

func NewOrderService(repo Repository, cat catalog.Catalog) *OrderService {
	return &OrderService{repo: repo, catalog: cat}
}

// GetOrder returns an order to its buyer, its seller or staff.
func (s *OrderService) GetOrder(ctx context.Context, actor authz.Actor, orderID string) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionReadOrder, authz.Owned(o.BuyerID, o.SellerID)); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) ListOrdersForUser(ctx context.Context, actor authz.Actor) ([]model.Order, error) {
	if err := authz.Authorize(actor, authz.ActionReadOrder, authz.Owned(actor.ID)); err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByBuyer(ctx, actor.ID)
}

func (s *OrderService) ListOrdersForAdmin(ctx context.Context, actor authz.Actor, f model.OrderFilter) ([]model.Order, error) {
	if err := authz.Authorize(actor, authz.ActionAdminView, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, f)
}

// ComputeSellerBalance is the derived view; nothing stores a balance.
func (s *OrderService) ComputeSellerBalance(ctx context.Context, sellerID string) (*model.SellerBalance, error) {
	return s.repo.SellerBalance(ctx, sellerID)
}

// MyBalance is the calling seller's own view.
func (s *OrderService) MyBalance(ctx context.Context, actor authz.Actor) (*model.SellerBalance, error) {
	if err := authz.Authorize(actor, authz.ActionListTicket, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.ComputeSellerBalance(ctx, actor.ID)
}

// Reconcile compares the derived balance with the ledger of a seller.
func (s *OrderService) Reconcile(ctx context.Context, actor authz.Actor, sellerID string) (*model.Discrepancy, error) {
	if err := authz.Authorize(actor, authz.ActionAdminView, authz.Resource{}); err != nil {
		return nil, err
	}

	b, err := s.repo.SellerBalance(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.LedgerTotal(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	d := ledger.Compare(b, total)
	if !d.Matched {
		metrics.LedgerDiscrepancies.Inc()
		middleware.GetLogger(ctx).Error().
			Str("seller_id", sellerID).
			Stringer("expected", d.ExpectedAmount).
			Stringer("actual", d.ActualAmount).
			Msg("seller balance does not match ledger")
	}
	return d, nil
}

func (s *OrderService) ListSellerBalances(ctx context.Context, actor authz.Actor) ([]model.SellerBalance, error) {
	if err := authz.Authorize(actor, authz.ActionOwnerView, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.repo.SellerBalances(ctx)
}

func (s *OrderService) OwnerDashboard(ctx context.Context, actor authz.Actor) (*model.OwnerDashboard, error) {
	if err := authz.Authorize(actor, authz.ActionOwnerView, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.repo.Dashboard(ctx, recentOrders)
}

func (s *OrderService) AdminStats(ctx context.Context, actor authz.Actor) (*model.AdminStats, error) {
	if err := authz.Authorize(actor, authz.ActionAdminView, authz.Resource{}); err != nil {
		return nil, err
	}
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if st.TotalEvents, err = s.catalog.CountEvents(ctx); err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("catalog unavailable, omitting event count")
	}
	return st, nil
}

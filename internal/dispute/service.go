// Package dispute handles buyer complaints about completed orders and the
// refunds that settle them.
package dispute

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/google/uuid"
)

type DisputeService struct {
	repo   Repository
	window time.Duration
	now    func() time.Time
}

func NewDisputeService(repo Repository, window time.Duration) *DisputeService {
	return &DisputeService{repo: repo, window: window, now: time.Now}
}

func (s *DisputeService) OpenDispute(ctx context.Context, actor authz.Actor, orderID string, req *types.OpenDisputeRequest) (*model.Dispute, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionOpenDispute, authz.Owned(o.BuyerID)); err != nil {
		return nil, err
	}
	if o.Status != model.OrderCompleted {
		return nil, apperr.InvalidState("order is %s and cannot be disputed", o.Status)
	}
	if s.now().After(o.CreatedAt.Add(s.window)) {
		return nil, apperr.InvalidState("the dispute window for this order has closed")
	}

	d := &model.Dispute{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		Reason:      req.Reason,
		Description: req.Description,
		Amount:      o.TicketPrice,
	}
	if err := s.repo.OpenDispute(ctx, d); err != nil {
		return nil, err
	}

	metrics.Disputes.WithLabelValues(string(model.DisputeOpen)).Inc()
	middleware.GetLogger(ctx).Info().Str("dispute_id", d.ID).Str("order_id", o.ID).Str("reason", d.Reason).Msg("dispute opened")
	return d, nil
}

// Resolve settles an open dispute. Resolved refunds the buyer; closed puts
// the order back in the seller's balance.
func (s *DisputeService) Resolve(ctx context.Context, actor authz.Actor, disputeID string, req *types.ResolveDisputeRequest) (*model.Dispute, error) {
	if err := authz.Authorize(actor, authz.ActionResolveDispute, authz.Resource{}); err != nil {
		return nil, err
	}
	if req.Status != model.DisputeResolved && req.Status != model.DisputeClosed {
		return nil, apperr.Validation("status must be resolved or closed")
	}

	d, err := s.repo.ResolveDispute(ctx, disputeID, req.Status, req.Resolution, actor.ID)
	if err != nil {
		return nil, err
	}

	metrics.Disputes.WithLabelValues(string(d.Status)).Inc()
	middleware.GetLogger(ctx).Info().Str("dispute_id", d.ID).Str("order_id", d.OrderID).Str("status", string(d.Status)).Msg("dispute settled")
	return d, nil
}

func (s *DisputeService) ListDisputes(ctx context.Context, actor authz.Actor, status model.DisputeStatus) ([]model.Dispute, error) {
	if err := authz.Authorize(actor, authz.ActionAdminView, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.repo.ListDisputes(ctx, status)
}

func (s *DisputeService) ListForUser(ctx context.Context, actor authz.Actor) ([]model.Dispute, error) {
	if actor.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return s.repo.ListDisputesByUser(ctx, actor.ID)
}

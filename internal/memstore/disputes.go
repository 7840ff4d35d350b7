package memstore

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
)

func disputeEvent(d *model.Dispute) types.DisputeEvent {
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

func (s *Store) OpenDispute(ctx context.Context, d *model.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[d.OrderID]
	if !ok {
		return apperr.NotFound("order %s not found", d.OrderID)
	}
	if o.Status != model.OrderCompleted {
		return apperr.InvalidState("order %s is %s", o.ID, o.Status)
	}

	now := s.now()
	o.Status = model.OrderDisputed
	o.UpdatedAt = now

	d.Status = model.DisputeOpen
	d.CreatedAt = now
	cp := *d
	s.disputes[d.ID] = &cp
	s.disputeIDs = append(s.disputeIDs, d.ID)

	s.appendLedger(o.SellerID, o.ID, "", model.LedgerDisputeHold, -o.TicketPrice)
	s.enqueue(ctx, kafka.EventDisputeOpened, o.ID, disputeEvent(d))
	return nil
}

func (s *Store) GetDispute(_ context.Context, id string) (*model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, apperr.NotFound("dispute %s not found", id)
	}
	cp := *d
	return &cp, nil
}

func (s *Store) ResolveDispute(ctx context.Context, id string, status model.DisputeStatus, resolution, resolvedBy string) (*model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, apperr.NotFound("dispute %s not found", id)
	}
	if d.Status != model.DisputeOpen {
		return nil, apperr.InvalidState("dispute %s is already %s", id, d.Status)
	}
	o := s.orders[d.OrderID]
	if o.Status != model.OrderDisputed {
		return nil, apperr.InvalidState("order %s is %s", o.ID, o.Status)
	}

	now := s.now()
	d.Status = status
	d.Resolution = resolution
	d.ResolvedBy = resolvedBy
	d.ResolvedAt = &now
	o.UpdatedAt = now

	s.appendLedger(o.SellerID, o.ID, "", model.LedgerDisputeRelease, o.TicketPrice)
	event := kafka.EventDisputeClosed
	if status == model.DisputeResolved {
		o.Status = model.OrderRefunded
		s.appendLedger(o.SellerID, o.ID, "", model.LedgerRefund, -o.TicketPrice)
		event = kafka.EventDisputeRefunded
	} else {
		o.Status = model.OrderCompleted
	}
	s.enqueue(ctx, event, o.ID, disputeEvent(d))

	cp := *d
	return &cp, nil
}

func (s *Store) ListDisputes(_ context.Context, status model.DisputeStatus) ([]model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Dispute{}
	for i := len(s.disputeIDs) - 1; i >= 0; i-- {
		d := s.disputes[s.disputeIDs[i]]
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *Store) ListDisputesByUser(_ context.Context, userID string) ([]model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Dispute{}
	for i := len(s.disputeIDs) - 1; i >= 0; i-- {
		d := s.disputes[s.disputeIDs[i]]
		if d.BuyerID == userID || d.SellerID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

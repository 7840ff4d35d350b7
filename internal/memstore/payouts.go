package memstore

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/ledger"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
)

// CreatePayout checks the balance and inserts the payout under the store
// lock, the in-memory counterpart of the per-seller advisory lock.
func (s *Store) CreatePayout(ctx context.Context, p *model.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balance(p.SellerID)
	if !ledger.Sufficient(b, p.Amount) {
		return apperr.InsufficientBalance("payout of %s exceeds pending balance %s", p.Amount, b.PendingBalance)
	}

	p.Status = model.PayoutPending
	p.CreatedAt = s.now()
	cp := *p
	s.payouts[p.ID] = &cp
	s.payoutIDs = append(s.payoutIDs, p.ID)

	s.appendLedger(p.SellerID, "", p.ID, model.LedgerPayout, -p.Amount)
	s.enqueue(ctx, kafka.EventPayoutCreated, p.SellerID, types.PayoutEvent{
		PayoutID: p.ID, SellerID: p.SellerID, Amount: p.Amount, Status: p.Status,
	})
	return nil
}

func (s *Store) CompletePayout(ctx context.Context, id string) (*model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[id]
	if !ok {
		return nil, apperr.NotFound("payout %s not found", id)
	}
	if p.Status != model.PayoutPending {
		return nil, apperr.InvalidState("payout %s is already %s", id, p.Status)
	}
	now := s.now()
	p.Status = model.PayoutCompleted
	p.CompletedAt = &now
	s.enqueue(ctx, kafka.EventPayoutCompleted, p.SellerID, types.PayoutEvent{
		PayoutID: p.ID, SellerID: p.SellerID, Amount: p.Amount, Status: p.Status,
	})
	cp := *p
	return &cp, nil
}

func (s *Store) ListPayouts(_ context.Context) ([]model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Payout{}
	for i := len(s.payoutIDs) - 1; i >= 0; i-- {
		p := *s.payouts[s.payoutIDs[i]]
		u := s.users[p.SellerID]
		p.SellerName, p.SellerEmail = u.Name, u.Email
		out = append(out, p)
	}
	return out, nil
}

package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
)

func (s *Store) CreateSession(_ context.Context, cs *model.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.TicketID == cs.TicketID && existing.Status == model.CheckoutOpen {
			return apperr.Conflict("ticket %s already has an open checkout", cs.TicketID)
		}
	}
	if _, ok := s.sessions[cs.ID]; ok {
		return apperr.Conflict("checkout session %s already exists", cs.ID)
	}
	cs.Status = model.CheckoutOpen
	cs.CreatedAt = s.now()
	cp := *cs
	s.sessions[cs.ID] = &cp
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[id]
	if !ok {
		return nil, apperr.NotFound("checkout session %s not found", id)
	}
	cp := *cs
	return &cp, nil
}

func (s *Store) orderBySession(sessionID string) *model.Order {
	for _, id := range s.orderIDs {
		if o := s.orders[id]; o.SessionID == sessionID {
			return o
		}
	}
	return nil
}

func (s *Store) OrderBySession(_ context.Context, sessionID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orderBySession(sessionID)
	if o == nil {
		return nil, apperr.NotFound("no order for checkout session %s", sessionID)
	}
	cp := *o
	return &cp, nil
}

// FinalizeSession marks the session paid, sells the ticket and records the
// order with its sale entry. A session that already produced an order
// returns that order with created false. A session that closed without an
// order returns nil.
func (s *Store) FinalizeSession(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.orderBySession(o.SessionID); existing != nil {
		cp := *existing
		return &cp, false, nil
	}
	cs, ok := s.sessions[o.SessionID]
	if !ok {
		return nil, false, apperr.NotFound("checkout session %s not found", o.SessionID)
	}
	if cs.Status != model.CheckoutOpen {
		return nil, false, nil
	}
	t, ok := s.tickets[cs.TicketID]
	if !ok || t.Status != model.TicketReserved || t.ReservedBy == nil || *t.ReservedBy != cs.BuyerID {
		return nil, false, apperr.InvalidState("ticket %s is not reserved by the buyer", cs.TicketID)
	}

	now := s.now()
	cs.Status = model.CheckoutPaid
	cs.CompletedAt = &now

	t.Status = model.TicketSold
	t.Version++
	t.UpdatedAt = now

	o.Status = model.OrderCompleted
	o.CreatedAt, o.UpdatedAt = now, now
	cp := *o
	s.orders[o.ID] = &cp
	s.orderIDs = append(s.orderIDs, o.ID)

	s.appendLedger(o.SellerID, o.ID, "", model.LedgerSale, o.TicketPrice)
	s.enqueue(ctx, kafka.EventOrderCompleted, o.ID, types.OrderCompletedEvent{
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
		CompletedAt: now,
	})

	out := *o
	return &out, true, nil
}

func (s *Store) closeSession(id string, status model.CheckoutStatus) bool {
	cs, ok := s.sessions[id]
	if !ok || cs.Status != model.CheckoutOpen {
		return false
	}
	cs.Status = status
	s.releaseFor(cs.TicketID, cs.BuyerID)
	return true
}

func (s *Store) ExpireSession(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeSession(id, model.CheckoutExpired), nil
}

func (s *Store) FailSession(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeSession(id, model.CheckoutFailed), nil
}

func (s *Store) StaleSessions(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*model.CheckoutSession
	for _, cs := range s.sessions {
		if cs.Status == model.CheckoutOpen && cs.ExpiresAt.Before(cutoff) {
			stale = append(stale, cs)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ExpiresAt.Before(stale[j].ExpiresAt) })
	var ids []string
	for _, cs := range stale {
		if len(ids) == limit {
			break
		}
		ids = append(ids, cs.ID)
	}
	return ids, nil
}

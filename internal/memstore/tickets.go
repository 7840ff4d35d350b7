package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/model"
)

func (s *Store) CreateTicket(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	t.Status = model.TicketAvailable
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	s.tickets[t.ID] = &cp
	s.ticketIDs = append(s.ticketIDs, t.ID)
	return nil
}

func (s *Store) GetTicket(_ context.Context, id string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, apperr.NotFound("ticket %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) RemoveTicket(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != model.TicketAvailable {
		return false, nil
	}
	t.Status = model.TicketRemoved
	t.Version++
	t.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) Rollups(_ context.Context, eventID string) ([]model.CategoryRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCat := map[model.Category]*model.CategoryRollup{}
	var order []model.Category
	for _, id := range s.ticketIDs {
		t := s.tickets[id]
		if t.EventID != eventID || t.Status != model.TicketAvailable {
			continue
		}
		ru, ok := byCat[t.Category]
		if !ok {
			ru = &model.CategoryRollup{EventID: eventID, Category: t.Category, LowestPrice: t.Price}
			byCat[t.Category] = ru
			order = append(order, t.Category)
		}
		ru.Count++
		if t.Price < ru.LowestPrice {
			ru.LowestPrice = t.Price
		}
	}
	out := make([]model.CategoryRollup, 0, len(order))
	for _, c := range order {
		out = append(out, *byCat[c])
	}
	return out, nil
}

func (s *Store) Availability(_ context.Context, eventIDs []string) (map[string]model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range eventIDs {
		wanted[id] = true
	}
	out := make(map[string]model.Availability, len(eventIDs))
	for _, id := range s.ticketIDs {
		t := s.tickets[id]
		if !wanted[t.EventID] || t.Status != model.TicketAvailable {
			continue
		}
		a := out[t.EventID]
		a.Count++
		if a.LowestPrice == nil || t.Price < *a.LowestPrice {
			p := t.Price
			a.LowestPrice = &p
		}
		out[t.EventID] = a
	}
	return out, nil
}

func (s *Store) ListAvailable(_ context.Context, eventID string, limit int) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Ticket{}
	for _, id := range s.ticketIDs {
		t := s.tickets[id]
		if (eventID == "" || t.EventID == eventID) && t.Status == model.TicketAvailable {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListBySeller(_ context.Context, sellerID string) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Ticket{}
	for i := len(s.ticketIDs) - 1; i >= 0; i-- {
		t := s.tickets[s.ticketIDs[i]]
		if t.SellerID == sellerID && t.Status != model.TicketRemoved {
			out = append(out, *t)
		}
	}
	return out, nil
}

// ReserveTicket flips an available ticket to reserved. It returns nil when
// the ticket is not available or belongs to the buyer.
func (s *Store) ReserveTicket(_ context.Context, ticketID, buyerID string, until time.Time) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok || t.Status != model.TicketAvailable || t.SellerID == buyerID {
		return nil, nil
	}
	t.Status = model.TicketReserved
	t.ReservedBy = &buyerID
	t.ReservedUntil = &until
	t.Version++
	t.UpdatedAt = s.now()
	cp := *t
	return &cp, nil
}

func (s *Store) ReleaseTicket(_ context.Context, ticketID, buyerID string, version int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok || t.Status != model.TicketReserved || t.Version != version || t.ReservedBy == nil || *t.ReservedBy != buyerID {
		return false, nil
	}
	s.release(t)
	return true, nil
}

func (s *Store) release(t *model.Ticket) {
	t.Status = model.TicketAvailable
	t.ReservedBy = nil
	t.ReservedUntil = nil
	t.Version++
	t.UpdatedAt = s.now()
}

// releaseFor returns a ticket reserved by buyerID to the pool.
func (s *Store) releaseFor(ticketID, buyerID string) {
	t, ok := s.tickets[ticketID]
	if ok && t.Status == model.TicketReserved && t.ReservedBy != nil && *t.ReservedBy == buyerID {
		s.release(t)
	}
}

// ExpireReservations releases reservations that lapsed before cutoff,
// skipping tickets that still have an open checkout session.
func (s *Store) ExpireReservations(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []string
	for _, id := range s.ticketIDs {
		t := s.tickets[id]
		if t.Status != model.TicketReserved || t.ReservedUntil == nil || !t.ReservedUntil.Before(cutoff) {
			continue
		}
		if s.openSessionFor(id) {
			continue
		}
		s.release(t)
		released = append(released, id)
	}
	return released, nil
}

func (s *Store) openSessionFor(ticketID string) bool {
	for _, cs := range s.sessions {
		if cs.TicketID == ticketID && cs.Status == model.CheckoutOpen {
			return true
		}
	}
	return false
}

package memstore

import (
	"context"
	"sort"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/ledger"
	"github.com/Niiaks/ticketcore/internal/model"
)

func (s *Store) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return s.ListOrders(ctx, model.OrderFilter{BuyerID: buyerID})
}

// ListOrders returns matching orders newest first.
func (s *Store) ListOrders(_ context.Context, f model.OrderFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Order{}
	for i := len(s.orderIDs) - 1; i >= 0; i-- {
		o := *s.orders[s.orderIDs[i]]
		switch {
		case f.Status != "" && o.Status != f.Status:
			continue
		case f.SellerID != "" && o.SellerID != f.SellerID:
			continue
		case f.BuyerID != "" && o.BuyerID != f.BuyerID:
			continue
		}
		o.BuyerEmail = s.users[o.BuyerID].Email
		out = append(out, o)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) balance(sellerID string) *model.SellerBalance {
	b := &model.SellerBalance{SellerID: sellerID}
	for _, o := range s.orders {
		if o.SellerID != sellerID {
			continue
		}
		switch o.Status {
		case model.OrderCompleted:
			b.Earned += o.TicketPrice
			b.OrdersCount++
		case model.OrderRefunded:
			b.Refunded += o.TicketPrice
		}
	}
	for _, p := range s.payouts {
		if p.SellerID != sellerID {
			continue
		}
		switch p.Status {
		case model.PayoutPending:
			b.InFlight += p.Amount
		case model.PayoutCompleted:
			b.TotalPaid += p.Amount
		}
	}
	ledger.Derive(b)
	return b
}

func (s *Store) SellerBalance(_ context.Context, sellerID string) (*model.SellerBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance(sellerID), nil
}

// SellerBalances covers every seller role user and anyone who sold a ticket.
func (s *Store) SellerBalances(_ context.Context) ([]model.SellerBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := map[string]bool{}
	for _, u := range s.users {
		if u.Role == model.RoleSeller {
			ids[u.ID] = true
		}
	}
	for _, o := range s.orders {
		ids[o.SellerID] = true
	}
	out := make([]model.SellerBalance, 0, len(ids))
	for id := range ids {
		b := s.balance(id)
		u := s.users[id]
		b.Name, b.Email, b.KYCStatus = u.Name, u.Email, string(u.KYCStatus)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Earned > out[j].Earned })
	return out, nil
}

func (s *Store) LedgerTotal(_ context.Context, sellerID string) (model.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total model.Money
	for _, e := range s.ledger {
		if e.SellerID == sellerID {
			total += e.Amount
		}
	}
	return total, nil
}

func (s *Store) Dashboard(_ context.Context, recent int) (*model.OwnerDashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &model.OwnerDashboard{RecentOrders: []model.Order{}}
	for _, o := range s.orders {
		switch o.Status {
		case model.OrderPending:
			d.Orders.Pending++
		case model.OrderCompleted:
			d.Orders.Completed++
			d.Revenue.Total += o.TotalAmount
			d.Revenue.Commission += o.Commission
		case model.OrderCancelled:
			d.Orders.Cancelled++
		case model.OrderDisputed:
			d.Orders.Disputed++
		case model.OrderRefunded:
			d.Orders.Refunded++
		}
	}
	for _, p := range s.payouts {
		switch p.Status {
		case model.PayoutPending:
			d.Payouts.PendingAmount += p.Amount
			d.Payouts.PendingCount++
		case model.PayoutCompleted:
			d.Payouts.TotalPaid += p.Amount
		}
	}
	for i := len(s.orderIDs) - 1; i >= 0 && len(d.RecentOrders) < recent; i-- {
		d.RecentOrders = append(d.RecentOrders, *s.orders[s.orderIDs[i]])
	}
	return d, nil
}

func (s *Store) Stats(_ context.Context) (*model.AdminStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &model.AdminStats{TotalUsers: len(s.users)}
	for _, u := range s.users {
		if u.Role == model.RoleSeller && u.KYCStatus == model.KYCVerified {
			st.VerifiedSellers++
		}
	}
	for _, t := range s.tickets {
		if t.Status == model.TicketSold {
			st.SoldTickets++
		}
	}
	for _, o := range s.orders {
		if o.Status == model.OrderCompleted {
			st.TotalRevenue += o.TotalAmount
			st.TotalCommission += o.Commission
		}
	}
	for _, d := range s.disputes {
		if d.Status == model.DisputeOpen {
			st.OpenDisputes++
		}
	}
	return st, nil
}

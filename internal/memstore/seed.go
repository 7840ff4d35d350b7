package memstore

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var defaultCommission = decimal.RequireFromString("0.10")

// SeedPaidOrder lists a ticket and runs it through reservation and a paid
// checkout, leaving a completed order behind.
func (s *Store) SeedPaidOrder(ctx context.Context, sellerID, buyerID string, price model.Money) (*model.Order, error) {
	ticketID := uuid.NewString()
	if err := s.CreateTicket(ctx, &model.Ticket{
		ID: ticketID, EventID: "evt-seed", Category: model.CategoryCat1, Price: price, Currency: "eur", SellerID: sellerID,
	}); err != nil {
		return nil, err
	}

	until := s.Now().Add(30 * time.Minute)
	if _, err := s.ReserveTicket(ctx, ticketID, buyerID, until); err != nil {
		return nil, err
	}

	commission := model.Commission(price, defaultCommission)
	cs := &model.CheckoutSession{
		ID: "cs_" + ticketID, TicketID: ticketID, EventID: "evt-seed", SellerID: sellerID, BuyerID: buyerID,
		TicketPrice: price, Commission: commission, Amount: price + commission, Currency: "eur", ExpiresAt: until,
	}
	if err := s.CreateSession(ctx, cs); err != nil {
		return nil, err
	}

	o, _, err := s.FinalizeSession(ctx, &model.Order{
		ID: uuid.NewString(), SessionID: cs.ID, TicketID: ticketID, EventID: "evt-seed", BuyerID: buyerID,
		SellerID: sellerID, TicketPrice: price, Commission: commission, TotalAmount: cs.Amount, Currency: "eur",
		QRPayload: "TIX|seed",
	})
	return o, err
}

// Package reservation moves tickets between the available pool and a single
// buyer's hold.
package reservation

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
)

// Token proves a buyer holds a ticket until ExpiresAt.
type Token struct {
	TicketID  string      `json:"ticket_id"`
	BuyerID   string      `json:"buyer_id"`
	SellerID  string      `json:"seller_id"`
	EventID   string      `json:"event_id"`
	Price     model.Money `json:"price"`
	Currency  string      `json:"currency"`
	ExpiresAt time.Time   `json:"expires_at"`
	Version   int64       `json:"version"`
}

type ReservationService struct {
	repo  Repository
	ttl   time.Duration
	grace time.Duration
	now   func() time.Time
}

func NewReservationService(repo Repository, ttl, grace time.Duration) *ReservationService {
	return &ReservationService{repo: repo, ttl: ttl, grace: grace, now: time.Now}
}

func (s *ReservationService) TTL() time.Duration {
	return s.ttl
}

// Reserve holds ticketID for buyerID. Exactly one of any number of
// concurrent callers succeeds; the others get a Conflict.
func (s *ReservationService) Reserve(ctx context.Context, ticketID, buyerID string) (*Token, error) {
	logger := middleware.GetLogger(ctx)

	until := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	t, err := s.repo.ReserveTicket(ctx, ticketID, buyerID, until)
	if err != nil {
		metrics.Reservations.WithLabelValues("error").Inc()
		return nil, err
	}
	if t == nil {
		metrics.Reservations.WithLabelValues("conflict").Inc()
		return nil, s.explain(ctx, ticketID, buyerID)
	}

	metrics.Reservations.WithLabelValues("reserved").Inc()
	logger.Info().Str("ticket_id", t.ID).Time("reserved_until", until).Msg("ticket reserved")

	return &Token{
		TicketID:  t.ID,
		BuyerID:   buyerID,
		SellerID:  t.SellerID,
		EventID:   t.EventID,
		Price:     t.Price,
		Currency:  t.Currency,
		ExpiresAt: until,
		Version:   t.Version,
	}, nil
}

// explain turns a failed reservation guard into the error the caller sees.
func (s *ReservationService) explain(ctx context.Context, ticketID, buyerID string) error {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.SellerID == buyerID {
		return apperr.Validation("you cannot buy your own ticket")
	}
	return apperr.Conflict("ticket no longer available")
}

// Release hands a reserved ticket back to the pool. Releasing a token whose
// reservation already moved on is a no-op.
func (s *ReservationService) Release(ctx context.Context, tok *Token) error {
	released, err := s.repo.ReleaseTicket(ctx, tok.TicketID, tok.BuyerID, tok.Version)
	if err != nil {
		return err
	}
	if released {
		metrics.Reservations.WithLabelValues("released").Inc()
		middleware.GetLogger(ctx).Info().Str("ticket_id", tok.TicketID).Msg("reservation released")
	}
	return nil
}

// ExpireDue returns reservations that lapsed more than the grace period
// before now to the pool. Reservations backing an open checkout are left
// to the checkout sweep.
func (s *ReservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	released, err := s.repo.ExpireReservations(ctx, now.Add(-s.grace))
	if err != nil {
		return 0, err
	}
	if len(released) > 0 {
		metrics.ReservationsExpired.Add(float64(len(released)))
		middleware.GetLogger(ctx).Info().Strs("ticket_ids", released).Msg("expired reservations released")
	}
	return len(released), nil
}

// Package checkout runs the hosted payment lifecycle of a reserved ticket,
// from session creation to the paid order.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/psp"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/Niiaks/ticketcore/internal/reservation"
	"github.com/Niiaks/ticketcore/pkg/constants"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/google/uuid"
)

// Finalization sources, used in logs and metrics.
const (
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
	SourceSweep   = "sweep"
)

const sweepBatch = 100

type Reserver interface {
	Reserve(ctx context.Context, ticketID, buyerID string) (*reservation.Token, error)
	Release(ctx context.Context, tok *reservation.Token) error
}

// IdempotencyStore replays responses of repeated create requests.
type IdempotencyStore interface {
	CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	MarkIdempotencyFailed(ctx context.Context, key string) error
}

type CheckoutService struct {
	repo         Repository
	reservations Reserver
	provider     psp.Provider
	idempotency  IdempotencyStore
	cfg          config.CheckoutConfig
	currency     string
	now          func() time.Time
}

func NewCheckoutService(repo Repository, reservations Reserver, provider psp.Provider, idempotency IdempotencyStore, cfg config.CheckoutConfig, currency string) *CheckoutService {
	return &CheckoutService{
		repo:         repo,
		reservations: reservations,
		provider:     provider,
		idempotency:  idempotency,
		cfg:          cfg,
		currency:     strings.ToLower(currency),
		now:          time.Now,
	}
}

// CreateSession reserves the ticket and opens a hosted checkout for it.
func (s *CheckoutService) CreateSession(ctx context.Context, actor authz.Actor, req *types.CreateCheckoutRequest, idempotencyKey string) (*types.CreateCheckoutResponse, error) {
	logger := middleware.GetLogger(ctx)

	if err := authz.Authorize(actor, authz.ActionCheckout, authz.Resource{}); err != nil {
		return nil, err
	}

	key := ""
	if idempotencyKey != "" && s.idempotency != nil {
		key = "checkout:" + actor.ID + ":" + idempotencyKey
		cached, err := s.idempotency.CheckAndSetIdempotency(ctx, key, s.cfg.IdempotencyTTL)
		switch {
		case cached != nil:
			logger.Info().Str("idempotency_key", idempotencyKey).Msg("Returning cached checkout response due to idempotency key")
			var res types.CreateCheckoutResponse
			if err := json.Unmarshal(cached, &res); err != nil {
				return nil, err
			}
			return &res, nil
		case errors.Is(err, redis.ErrKeyExists):
			logger.Warn().Str("idempotency_key", idempotencyKey).Msg("Request still in progress with same idempotency key")
			return nil, apperr.Conflict("a request with this idempotency key is in progress")
		case err != nil:
			logger.Warn().Err(err).Msg("idempotency store unavailable, continuing without it")
			key = ""
		}
	}

	res, err := s.createSession(ctx, actor, req)
	if err != nil {
		if key != "" {
			if mErr := s.idempotency.MarkIdempotencyFailed(ctx, key); mErr != nil {
				logger.Warn().Err(mErr).Msg("failed to clear idempotency key")
			}
		}
		return nil, err
	}

	if key != "" {
		body, _ := json.Marshal(res)
		if err := s.idempotency.MarkIdempotencyComplete(ctx, key, body, s.cfg.IdempotencyTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache checkout response")
		}
	}
	return res, nil
}

func (s *CheckoutService) createSession(ctx context.Context, actor authz.Actor, req *types.CreateCheckoutRequest) (*types.CreateCheckoutResponse, error) {
	logger := middleware.GetLogger(ctx)

	tok, err := s.reservations.Reserve(ctx, req.TicketID, actor.ID)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	commission := model.Commission(tok.Price, s.cfg.CommissionRate)
	amount := tok.Price + commission
	origin := strings.TrimRight(req.OriginURL, "/")

	ps, err := s.provider.CreateCheckoutSession(ctx, &types.CreateCheckoutSessionRequest{
		Amount:      int64(amount),
		Currency:    s.currency,
		ProductName: "Ticket " + tok.TicketID,
		SuccessURL:  origin + "/order/success?session_id=" + constants.CheckoutSessionPlaceholder,
		CancelURL:   origin + "/event/" + tok.EventID,
		ExpiresAt:   tok.ExpiresAt.Add(s.cfg.ExpiryGrace).Unix(),
		CustomerRef: actor.ID,
		Metadata: map[string]string{
			"ticket_id": tok.TicketID,
			"buyer_id":  actor.ID,
			"event_id":  tok.EventID,
		},
	}, "checkout-"+tok.TicketID+"-"+strconv.FormatInt(tok.Version, 10))
	if err != nil {
		logger.Error().Err(err).Str("ticket_id", tok.TicketID).Msg("Failed to create checkout session with provider")
		metrics.CheckoutSessions.WithLabelValues("provider_error").Inc()
		s.release(ctx, tok)
		return nil, apperr.Provider(err, "payment provider unavailable")
	}

	cs := &model.CheckoutSession{
		ID:          ps.ID,
		TicketID:    tok.TicketID,
		EventID:     tok.EventID,
		SellerID:    tok.SellerID,
		BuyerID:     actor.ID,
		TicketPrice: tok.Price,
		Commission:  commission,
		Amount:      amount,
		Currency:    s.currency,
		RedirectURL: ps.URL,
		ExpiresAt:   tok.ExpiresAt,
	}
	if err := s.repo.CreateSession(ctx, cs); err != nil {
		logger.Error().Err(err).Str("session_id", ps.ID).Msg("Failed to persist checkout session")
		s.release(ctx, tok)
		if pErr := s.provider.ExpireCheckoutSession(ctx, ps.ID); pErr != nil {
			logger.Warn().Err(pErr).Str("session_id", ps.ID).Msg("failed to expire orphaned provider session")
		}
		return nil, err
	}

	metrics.CheckoutSessions.WithLabelValues("created").Inc()
	logger.Info().
		Str("session_id", cs.ID).
		Str("ticket_id", cs.TicketID).
		Stringer("amount", cs.Amount).
		Stringer("commission", cs.Commission).
		Msg("checkout session created")

	return &types.CreateCheckoutResponse{URL: cs.RedirectURL, SessionID: cs.ID}, nil
}

func (s *CheckoutService) release(ctx context.Context, tok *reservation.Token) {
	if err := s.reservations.Release(ctx, tok); err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Str("ticket_id", tok.TicketID).Msg("failed to release reservation")
	}
}

// GetStatus is the buyer's poll. It never changes anything the provider has
// not confirmed, so repeated calls converge on the same answer.
func (s *CheckoutService) GetStatus(ctx context.Context, actor authz.Actor, sessionID string) (*types.CheckoutStatusResponse, error) {
	logger := middleware.GetLogger(ctx)

	cs, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionReadCheckout, authz.Owned(cs.BuyerID)); err != nil {
		return nil, err
	}

	switch cs.Status {
	case model.CheckoutPaid:
		order, err := s.repo.OrderBySession(ctx, cs.ID)
		if err != nil {
			return nil, err
		}
		return &types.CheckoutStatusResponse{Status: cs.Status, PaymentStatus: "paid", Order: order}, nil
	case model.CheckoutExpired, model.CheckoutFailed:
		return &types.CheckoutStatusResponse{Status: cs.Status, PaymentStatus: "unpaid"}, nil
	}

	ps, err := s.provider.GetCheckoutSession(ctx, cs.ID)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", cs.ID).Msg("provider status unavailable, reporting open")
		return &types.CheckoutStatusResponse{Status: model.CheckoutOpen, PaymentStatus: "unpaid"}, nil
	}

	if ps.Paid() {
		order, err := s.Finalize(ctx, cs.ID, model.Money(ps.AmountTotal), SourcePoll)
		if err != nil {
			return nil, err
		}
		return &types.CheckoutStatusResponse{Status: model.CheckoutPaid, PaymentStatus: ps.PaymentStatus, Order: order}, nil
	}

	if ps.Status == "expired" || s.now().After(cs.ExpiresAt.Add(s.cfg.ExpiryGrace)) {
		status, order, err := s.settleLapsed(ctx, cs.ID, ps, SourcePoll)
		if err != nil {
			return nil, err
		}
		paymentStatus := "unpaid"
		if status == model.CheckoutPaid {
			paymentStatus = "paid"
		}
		return &types.CheckoutStatusResponse{Status: status, PaymentStatus: paymentStatus, Order: order}, nil
	}

	return &types.CheckoutStatusResponse{Status: model.CheckoutOpen, PaymentStatus: ps.PaymentStatus}, nil
}

// Finalize turns a paid session into an order. Polling and the webhook both
// call it; only the first call has side effects.
func (s *CheckoutService) Finalize(ctx context.Context, sessionID string, amountPaid model.Money, source string) (*model.Order, error) {
	logger := middleware.GetLogger(ctx).With().Str("session_id", sessionID).Str("source", source).Logger()

	cs, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cs.Status == model.CheckoutPaid {
		metrics.Finalizations.WithLabelValues(source, "duplicate").Inc()
		return s.repo.OrderBySession(ctx, cs.ID)
	}

	if cs.Status == model.CheckoutOpen && amountPaid != cs.Amount {
		logger.Error().Stringer("paid", amountPaid).Stringer("expected", cs.Amount).Msg("paid amount does not match checkout, failing session for manual reconciliation")
		if _, err := s.repo.FailSession(ctx, cs.ID); err != nil {
			return nil, err
		}
		metrics.Finalizations.WithLabelValues(source, "amount_mismatch").Inc()
		metrics.CheckoutSessions.WithLabelValues("failed").Inc()
		return nil, apperr.InvalidState("paid amount %s does not match %s", amountPaid, cs.Amount)
	}

	orderID := uuid.NewString()
	order, created, err := s.repo.FinalizeSession(ctx, &model.Order{
		ID:          orderID,
		SessionID:   cs.ID,
		TicketID:    cs.TicketID,
		EventID:     cs.EventID,
		BuyerID:     cs.BuyerID,
		SellerID:    cs.SellerID,
		TicketPrice: cs.TicketPrice,
		Commission:  cs.Commission,
		TotalAmount: cs.Amount,
		Currency:    cs.Currency,
		QRPayload:   SignQR(s.cfg.QRSecret, orderID, cs.TicketID),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to finalize paid checkout")
		metrics.Finalizations.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	if order == nil {
		logger.Error().Str("status", string(cs.Status)).Msg("payment received for a closed checkout, manual reconciliation required")
		metrics.Finalizations.WithLabelValues(source, "unreconciled").Inc()
		return nil, apperr.InvalidState("checkout session %s is %s", cs.ID, cs.Status)
	}

	if !created {
		metrics.Finalizations.WithLabelValues(source, "duplicate").Inc()
		return order, nil
	}

	metrics.Finalizations.WithLabelValues(source, "created").Inc()
	metrics.CheckoutSessions.WithLabelValues("paid").Inc()
	logger.Info().
		Str("order_id", order.ID).
		Str("ticket_id", order.TicketID).
		Stringer("total", order.TotalAmount).
		Msg("order completed")
	return order, nil
}

// Expire closes an open session and returns its ticket to stock.
func (s *CheckoutService) Expire(ctx context.Context, sessionID string) (bool, error) {
	expired, err := s.repo.ExpireSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if expired {
		metrics.CheckoutSessions.WithLabelValues("expired").Inc()
		middleware.GetLogger(ctx).Info().Str("session_id", sessionID).Msg("checkout session expired")
	}
	return expired, nil
}

// settleLapsed decides a session past its deadline from the provider's
// view. An unpaid session is closed at the provider before the ticket goes
// back on sale; a refusal there means the buyer paid in the meantime.
func (s *CheckoutService) settleLapsed(ctx context.Context, sessionID string, ps *types.StripeCheckoutSession, source string) (model.CheckoutStatus, *model.Order, error) {
	logger := middleware.GetLogger(ctx)

	if ps.Status == "open" && !ps.Paid() {
		if err := s.provider.ExpireCheckoutSession(ctx, sessionID); err != nil {
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("provider refused to expire session, checking payment")
			fresh, gErr := s.provider.GetCheckoutSession(ctx, sessionID)
			if gErr != nil {
				logger.Warn().Err(gErr).Str("session_id", sessionID).Msg("provider status unavailable, keeping session open")
				return model.CheckoutOpen, nil, nil
			}
			ps = fresh
		} else {
			ps.Status = "expired"
		}
	}

	switch {
	case ps.Paid():
		order, err := s.Finalize(ctx, sessionID, model.Money(ps.AmountTotal), source)
		if err != nil {
			return "", nil, err
		}
		return model.CheckoutPaid, order, nil
	case ps.Status == "expired":
		if _, err := s.Expire(ctx, sessionID); err != nil {
			return "", nil, err
		}
		return model.CheckoutExpired, nil, nil
	default:
		// Completed with the payment still clearing; the async webhook settles it.
		return model.CheckoutOpen, nil, nil
	}
}

// SweepExpired settles open sessions whose deadline passed more than the
// grace period before now. Each one is checked with the provider first, so a
// payment whose webhook is still in flight becomes an order instead of being
// released. It returns the number of sessions expired.
func (s *CheckoutService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	logger := middleware.GetLogger(ctx)

	ids, err := s.repo.StaleSessions(ctx, now.Add(-s.cfg.ExpiryGrace), sweepBatch)
	if err != nil {
		return 0, err
	}

	expired, paid := 0, 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		ps, err := s.provider.GetCheckoutSession(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Str("session_id", id).Msg("provider status unavailable, leaving lapsed session open")
			continue
		}
		status, _, err := s.settleLapsed(ctx, id, ps, SourceSweep)
		if err != nil {
			logger.Error().Err(err).Str("session_id", id).Msg("failed to settle lapsed checkout session")
			continue
		}
		switch status {
		case model.CheckoutExpired:
			expired++
		case model.CheckoutPaid:
			paid++
		}
	}
	if len(ids) > 0 {
		logger.Info().Int("expired", expired).Int("paid", paid).Int("lapsed", len(ids)).Msg("lapsed checkout sessions settled")
	}
	return expired, nil
}

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/checkout"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/pkg/constants"
	"github.com/Niiaks/ticketcore/pkg/types"
)

// DefaultTolerance bounds the age of a signed delivery.
const DefaultTolerance = 5 * time.Minute

const maxBodyBytes = 1 << 20

// Finalizer is the part of the checkout service a provider event can drive.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID string, amountPaid model.Money, source string) (*model.Order, error)
	Expire(ctx context.Context, sessionID string) (bool, error)
}

type WebhookHandler struct {
	secret    string
	tolerance time.Duration
	recorder  Recorder
	checkout  Finalizer
	now       func() time.Time
}

func NewWebhookHandler(secret string, recorder Recorder, checkout Finalizer) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		tolerance: DefaultTolerance,
		recorder:  recorder,
		checkout:  checkout,
		now:       time.Now,
	}
}

// verifySignature checks a Stripe-Signature header of the form
// t=<unix>,v1=<hex hmac-sha256 of "t.body">.
func verifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) bool {
	var (
		timestamp  int64
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return false
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	header := r.Header.Get(constants.HeaderStripeSignature)
	if header == "" {
		respond.Error(w, r, apperr.Validation("missing signature"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read request body")
		respond.Error(w, r, apperr.Validation("unreadable body"))
		return
	}

	if !verifySignature(body, header, h.secret, h.tolerance, h.now()) {
		logger.Warn().Msg("Invalid webhook signature")
		respond.Error(w, r, apperr.ErrUnauthorized)
		return
	}

	var event types.StripeEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		respond.Error(w, r, apperr.Validation("malformed event"))
		return
	}

	eventLogger := logger.With().Str("stripe_event_id", event.ID).Str("stripe_event_type", event.Type).Logger()
	logger = &eventLogger
	ctx = middleware.WithLogger(ctx, logger)

	fresh, err := h.recorder.RecordWebhook(ctx, event.ID, event.Type, body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record webhook")
		respond.Error(w, r, err)
		return
	}
	if !fresh {
		logger.Info().Msg("Duplicate webhook delivery ignored")
		respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	status, err := h.process(ctx, &event)
	if mErr := h.recorder.MarkWebhook(ctx, event.ID, status); mErr != nil {
		logger.Error().Err(mErr).Str("status", status).Msg("Failed to update webhook status")
	}
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// process applies an event and returns the status to record. An error asks
// the provider to redeliver.
func (h *WebhookHandler) process(ctx context.Context, event *types.StripeEvent) (string, error) {
	logger := middleware.GetLogger(ctx)
	session := &event.Data.Object

	switch event.Type {
	case types.StripeEventCheckoutCompleted, types.StripeEventCheckoutAsyncPaymentSucceeded:
		if !session.Paid() {
			logger.Info().Str("payment_status", session.PaymentStatus).Msg("checkout completed without payment yet")
			return constants.WebhookProcessed, nil
		}
		_, err := h.checkout.Finalize(ctx, session.ID, model.Money(session.AmountTotal), checkout.SourceWebhook)
		switch {
		case err == nil:
			return constants.WebhookProcessed, nil
		case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrNotFound):
			logger.Error().Err(err).Str("session_id", session.ID).Msg("paid checkout could not be finalized, flagged for reconciliation")
			return constants.WebhookUnreconciled, nil
		default:
			return constants.WebhookFailed, err
		}

	case types.StripeEventCheckoutExpired:
		if _, err := h.checkout.Expire(ctx, session.ID); err != nil {
			return constants.WebhookFailed, err
		}
		return constants.WebhookProcessed, nil

	default:
		logger.Debug().Msg("ignoring unhandled webhook type")
		return constants.WebhookProcessed, nil
	}
}

package checkout

import (
	"context"
	"net/http"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/pkg/constants"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type CheckoutHandler struct {
	service       *CheckoutService
	createTimeout time.Duration
	statusTimeout time.Duration
}

func NewCheckoutHandler(service *CheckoutService, createTimeout, statusTimeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		service:       service,
		createTimeout: createTimeout,
		statusTimeout: statusTimeout,
	}
}

var validate = validator.New()

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.createTimeout)
	defer cancel()

	logger := middleware.GetLogger(ctx)
	logger.Info().Msg("Creating checkout session")

	var req types.CreateCheckoutRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		logger.Warn().Err(err).Msg("Validation error on checkout request")
		respond.Error(w, r, apperr.Validation("validation error: %s", err.Error()))
		return
	}

	res, err := h.service.CreateSession(ctx, middleware.ActorFrom(ctx), &req, r.Header.Get(constants.HeaderIdempotencyKey))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.statusTimeout)
	defer cancel()

	res, err := h.service.GetStatus(ctx, middleware.ActorFrom(ctx), chi.URLParam(r, "session_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// VerifyQR checks a scanned ticket code at the gate.
func (h *CheckoutHandler) VerifyQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authz.Authorize(middleware.ActorFrom(ctx), authz.ActionAdminView, authz.Resource{}); err != nil {
		respond.Error(w, r, err)
		return
	}
	payload := r.URL.Query().Get("payload")

	orderID, ticketID, ok := VerifyQR(h.service.cfg.QRSecret, payload)
	if !ok {
		respond.Error(w, r, apperr.Validation("invalid ticket code"))
		return
	}
	middleware.GetLogger(ctx).Info().Str("order_id", orderID).Msg("ticket code verified")
	respond.JSON(w, http.StatusOK, map[string]string{"order_id": orderID, "ticket_id": ticketID})
}

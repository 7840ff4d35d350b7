package payout

import (
	"net/http"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/pkg/constants"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/go-playground/validator/v10"
)

type PayoutHandler struct {
	service *PayoutService
}

func NewPayoutHandler(service *PayoutService) *PayoutHandler {
	return &PayoutHandler{service: service}
}

var validate = validator.New()

func (h *PayoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req types.CreatePayoutRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		logger.Warn().Err(err).Msg("Validation error on payout request")
		respond.Error(w, r, apperr.Validation("validation error: %s", err.Error()))
		return
	}

	p, err := h.service.CreatePayout(ctx, middleware.ActorFrom(ctx), &req, r.Header.Get(constants.HeaderIdempotencyKey))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, types.CreatePayoutResponse{PayoutID: p.ID})
}

func (h *PayoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := respond.UUIDParam(r, "id", "payout")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	p, err := h.service.CompletePayout(ctx, middleware.ActorFrom(ctx), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payouts, err := h.service.ListPayouts(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, payouts)
}

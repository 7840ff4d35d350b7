package dispute

import (
	"net/http"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/go-playground/validator/v10"
)

type DisputeHandler struct {
	service *DisputeService
}

func NewDisputeHandler(service *DisputeService) *DisputeHandler {
	return &DisputeHandler{service: service}
}

var validate = validator.New()

func (h *DisputeHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.OpenDisputeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respond.Error(w, r, apperr.Validation("validation error: %s", err.Error()))
		return
	}

	id, err := respond.UUIDParam(r, "id", "order")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	d, err := h.service.OpenDispute(ctx, middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.ResolveDisputeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respond.Error(w, r, apperr.Validation("validation error: %s", err.Error()))
		return
	}

	id, err := respond.UUIDParam(r, "id", "dispute")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	d, err := h.service.Resolve(ctx, middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputes, err := h.service.ListDisputes(ctx, middleware.ActorFrom(ctx), model.DisputeStatus(r.URL.Query().Get("status")))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, disputes)
}

func (h *DisputeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputes, err := h.service.ListForUser(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, disputes)
}

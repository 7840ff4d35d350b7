package alert

import (
	"net/http"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/go-playground/validator/v10"
)

type AlertHandler struct {
	service *AlertService
}

func NewAlertHandler(service *AlertService) *AlertHandler {
	return &AlertHandler{service: service}
}

var validate = validator.New()

func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.CreateAlertRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respond.Error(w, r, apperr.Validation("validation error: %s", err.Error()))
		return
	}

	a, err := h.service.CreateAlert(ctx, middleware.ActorFrom(ctx), &req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, a)
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alerts, err := h.service.ListAlerts(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := respond.UUIDParam(r, "id", "price alert")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.DeleteAlert(ctx, middleware.ActorFrom(ctx), id); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "price alert deleted"})
}

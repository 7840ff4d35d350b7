package inventory

import (
	"net/http"
	"strconv"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type InventoryHandler struct {
	service *InventoryService
}

func NewInventoryHandler(service *InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

var validate = validator.New()

func (h *InventoryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	featured, _ := strconv.ParseBool(q.Get("featured"))

	f := model.EventFilter{
		Type:     model.EventType(q.Get("event_type")),
		City:     q.Get("city"),
		Search:   q.Get("search"),
		Featured: featured,
		Limit:    limit,
	}
	if f.Type != "" && !f.Type.Valid() {
		respond.Error(w, r, apperr.Validation("unknown event_type %q", f.Type))
		return
	}

	events, err := h.service.ListEvents(r.Context(), f)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}

func (h *InventoryHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, event)
}

func (h *InventoryHandler) Rollups(w http.ResponseWriter, r *http.Request) {
	rollups, err := h.service.GetCategoryRollups(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rollups)
}

func (h *InventoryHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListAvailable(r.Context(), r.URL.Query().Get("event_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, tickets)
}

func (h *InventoryHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req types.CreateTicketRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		logger.Warn().Err(err).Msg("Validation error on ticket listing")
		respond.Error(w, r, apperr.Validation("validation error: %s", err.Error()))
		return
	}

	t, err := h.service.ListTicket(ctx, middleware.ActorFrom(ctx), &req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, types.CreateTicketResponse{TicketID: t.ID})
}

func (h *InventoryHandler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := respond.UUIDParam(r, "id", "ticket")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.RemoveTicket(ctx, middleware.ActorFrom(ctx), id); err != nil {
		respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) SellerTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tickets, err := h.service.ListSellerTickets(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, tickets)
}

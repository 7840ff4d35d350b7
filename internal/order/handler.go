package order

import (
	"net/http"
	"strconv"

	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	service *OrderService
}

func NewOrderHandler(service *OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.service.ListOrdersForUser(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := respond.UUIDParam(r, "id", "order")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	o, err := h.service.GetOrder(ctx, middleware.ActorFrom(ctx), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, o)
}

func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	orders, err := h.service.ListOrdersForAdmin(ctx, middleware.ActorFrom(ctx), model.OrderFilter{
		Status:   model.OrderStatus(q.Get("status")),
		SellerID: q.Get("seller_id"),
		BuyerID:  q.Get("buyer_id"),
		Limit:    limit,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.service.AdminStats(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

func (h *OrderHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.Reconcile(ctx, middleware.ActorFrom(ctx), chi.URLParam(r, "seller_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func (h *OrderHandler) OwnerDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.OwnerDashboard(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func (h *OrderHandler) OwnerSellers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	balances, err := h.service.ListSellerBalances(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, balances)
}

func (h *OrderHandler) SellerBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := h.service.MyBalance(ctx, middleware.ActorFrom(ctx))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, b)
}

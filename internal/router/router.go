package router

import (
	"context"
	"net/http"
	"time"

	"github.com/Niiaks/ticketcore/internal/alert"
	"github.com/Niiaks/ticketcore/internal/checkout"
	"github.com/Niiaks/ticketcore/internal/dispute"
	"github.com/Niiaks/ticketcore/internal/inventory"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/order"
	"github.com/Niiaks/ticketcore/internal/payout"
	"github.com/Niiaks/ticketcore/internal/respond"
	"github.com/Niiaks/ticketcore/internal/server"
	"github.com/Niiaks/ticketcore/internal/user"
	"github.com/Niiaks/ticketcore/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	User      *user.UserHandler
	Inventory *inventory.InventoryHandler
	Checkout  *checkout.CheckoutHandler
	Webhook   *webhook.WebhookHandler
	Order     *order.OrderHandler
	Payout    *payout.PayoutHandler
	Dispute   *dispute.DisputeHandler
	Alert     *alert.AlertHandler
}

// Deps are the collaborators the middleware chain needs besides the server.
type Deps struct {
	Identities  middleware.IdentityStore
	RateLimiter middleware.RateLimiter
}

func NewRouter(s *server.Server, h *Handlers, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	mw := middleware.NewMiddlewares(s, deps.Identities)

	// Apply middleware in order
	r.Use(middleware.RequestID)
	r.Use(mw.Tracing.NewRelicMiddleware())
	r.Use(mw.Tracing.EnhanceTracing)
	r.Use(mw.ContextEnhancer.EnhanceContext)
	r.Use(mw.Global.RequestLogger)
	r.Use(mw.Global.Recoverer)
	r.Use(mw.Global.CORS)
	r.Use(mw.Auth.Authenticate)

	r.Handle("/metrics", promhttp.Handler())

	checkoutLimit := middleware.RateLimit(deps.RateLimiter, "checkout", s.Config.Checkout.RateLimit, s.Config.Checkout.RateWindow)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health(s))

		// Public catalog
		r.Get("/events", h.Inventory.ListEvents)
		r.Get("/events/{id}", h.Inventory.GetEvent)
		r.Get("/events/{id}/rollups", h.Inventory.Rollups)
		r.Get("/tickets", h.Inventory.ListTickets)

		// Provider callbacks authenticate by signature
		r.Post("/webhook/stripe", h.Webhook.HandleStripe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/me", h.User.Me)

			r.Post("/tickets", h.Inventory.CreateTicket)
			r.Delete("/tickets/{id}", h.Inventory.DeleteTicket)

			r.Route("/seller", func(r chi.Router) {
				r.Get("/tickets", h.Inventory.SellerTickets)
				r.Get("/balance", h.Order.SellerBalance)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.With(checkoutLimit).Post("/create", h.Checkout.Create)
				r.Get("/status/{session_id}", h.Checkout.Status)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Order.ListMine)
				r.Get("/{id}", h.Order.Get)
				r.Post("/{id}/disputes", h.Dispute.Open)
			})
			r.Get("/disputes", h.Dispute.ListMine)

			r.Route("/price-alerts", func(r chi.Router) {
				r.Get("/", h.Alert.List)
				r.Post("/", h.Alert.Create)
				r.Delete("/{id}", h.Alert.Delete)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/orders", h.Order.AdminList)
				r.Get("/stats", h.Order.AdminStats)
				r.Get("/disputes", h.Dispute.AdminList)
				r.Put("/disputes/{id}", h.Dispute.Resolve)
				r.Get("/reconcile/{seller_id}", h.Order.Reconcile)
				r.Get("/tickets/verify", h.Checkout.VerifyQR)
			})

			r.Route("/owner", func(r chi.Router) {
				r.Get("/dashboard", h.Order.OwnerDashboard)
				r.Get("/sellers", h.Order.OwnerSellers)
				r.Get("/payouts", h.Payout.List)
				r.Post("/payouts", h.Payout.Create)
				r.Put("/payouts/{id}/complete", h.Payout.Complete)
			})
		})
	})

	return r
}

func health(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if s.Db != nil {
			if err := s.Db.Ping(ctx); err != nil {
				checks["database"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if s.Redis != nil {
			if err := s.Redis.Ping(ctx); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		respond.JSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
	}
}

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/newrelic/go-agent/v3/newrelic"
)

type Tracing struct {
	nrApp *newrelic.Application
}

func NewTracing(nrApp *newrelic.Application) *Tracing {
	return &Tracing{
		nrApp: nrApp,
	}
}

// NewRelicMiddleware opens a web transaction per request and names it after
// the matched chi route once routing finished.
func (t *Tracing) NewRelicMiddleware() func(http.Handler) http.Handler {
	if t.nrApp == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			txn := t.nrApp.StartTransaction(r.Method + " " + r.URL.Path)
			defer txn.End()

			txn.SetWebRequestHTTP(r)
			w = txn.SetWebResponse(w)
			r = newrelic.RequestWithTransactionContext(r, txn)

			next.ServeHTTP(w, r)

			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					txn.SetName(r.Method + " " + pattern)
				}
			}
		})
	}
}

// EnhanceTracing adds custom attributes to the New Relic transaction.
func (t *Tracing) EnhanceTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		txn := newrelic.FromContext(r.Context())
		if txn == nil {
			next.ServeHTTP(w, r)
			return
		}

		txn.AddAttribute("http.real_ip", r.RemoteAddr)
		txn.AddAttribute("http.user_agent", r.UserAgent())

		if requestID := GetRequestID(r); requestID != "" {
			txn.AddAttribute("request.id", requestID)
		}

		if actor := ActorFrom(r.Context()); actor.ID != "" {
			txn.AddAttribute("user.id", actor.ID)
			txn.AddAttribute("user.role", string(actor.Role))
		}

		next.ServeHTTP(w, r)
	})
}

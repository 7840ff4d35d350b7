package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/alert"
	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/inventory"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/order"
	"github.com/Niiaks/ticketcore/internal/server"
	"github.com/Niiaks/ticketcore/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-secret"

func newTestRouter(t *testing.T) (http.Handler, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.AddEvent(model.Event{ID: "evt-1", Type: model.EventConcert, Title: "Coldplay", City: "Paris"})

	log := zerolog.Nop()
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = secret
	cfg.Auth.CookieName = "session_token"
	s := &server.Server{Config: cfg, Logger: &log}

	inv := inventory.NewInventoryService(store, store, "EUR")
	h := &Handlers{
		User:      user.NewUserHandler(user.NewUserService(store)),
		Inventory: inventory.NewInventoryHandler(inv),
		Order:     order.NewOrderHandler(order.NewOrderService(store, store)),
		Alert:     alert.NewAlertHandler(alert.NewAlertService(store, inv, store)),
	}
	return NewRouter(s, h, Deps{Identities: store}), store
}

func token(t *testing.T, sub string, role model.Role) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role:             role,
		Email:            sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func do(h http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", "").Code)

	rec := do(h, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []model.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_AuthenticatedRoutes(t *testing.T) {
	h, store := newTestRouter(t)
	buyer := token(t, "buyer-1", model.RoleBuyer)

	rec := do(h, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/orders", buyer).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/price-alerts", buyer).Code)

	rec = do(h, http.MethodGet, "/api/me", buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	u, err := store.GetUser(t.Context(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "buyer-1@example.com", u.Email)
}

func TestRouter_RoleGates(t *testing.T) {
	h, _ := newTestRouter(t)
	buyer := token(t, "buyer-1", model.RoleBuyer)
	admin := token(t, "admin-1", model.RoleAdmin)
	owner := token(t, "owner-1", model.RoleOwner)

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/admin/stats", buyer).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/admin/stats", admin).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/owner/dashboard", admin).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/owner/dashboard", owner).Code)
}

func TestRouter_MalformedIDsAreNotFound(t *testing.T) {
	h, _ := newTestRouter(t)
	buyer := token(t, "buyer-1", model.RoleBuyer)
	seller := token(t, "seller-1", model.RoleSeller)

	rec := do(h, http.MethodGet, "/api/orders/abc", buyer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/orders/6f1c1a52-3a8e-4c56-9a55-0d7f0f2b8e11", buyer).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/api/price-alerts/abc", buyer).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/api/tickets/abc", seller).Code)
}

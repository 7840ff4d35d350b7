package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub string, role model.Role, method jwt.SigningMethod) string {
	t.Helper()
	claims := Claims{
		Role:  role,
		Email: sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

type recordingIdentities struct {
	seen []model.User
}

func (r *recordingIdentities) Touch(_ context.Context, u model.User) error {
	r.seen = append(r.seen, u)
	return nil
}

func captureActor(got *authz.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate_BearerToken(t *testing.T) {
	ids := &recordingIdentities{}
	a := NewAuth(testSecret, "session_token", ids)

	var actor authz.Actor
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u-1", model.RoleSeller, jwt.SigningMethodHS256))
	rec := httptest.NewRecorder()

	a.Authenticate(captureActor(&actor)).ServeHTTP(rec, req)

	assert.Equal(t, authz.Actor{ID: "u-1", Role: model.RoleSeller}, actor)
	require.Len(t, ids.seen, 1)
	assert.Equal(t, "u-1@example.com", ids.seen[0].Email)
}

func TestAuthenticate_Cookie(t *testing.T) {
	a := NewAuth(testSecret, "session_token", nil)

	var actor authz.Actor
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: signToken(t, "u-2", "", jwt.SigningMethodHS256)})

	a.Authenticate(captureActor(&actor)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "u-2", actor.ID)
	assert.Equal(t, model.RoleBuyer, actor.Role)
}

func TestAuthenticate_RejectsForeignAlgorithm(t *testing.T) {
	a := NewAuth(testSecret, "session_token", nil)

	var actor authz.Actor
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u-3", model.RoleOwner, jwt.SigningMethodHS512))

	a.Authenticate(captureActor(&actor)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, actor.ID)
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"not authenticated"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), authz.Actor{ID: "u-1", Role: model.RoleBuyer}))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fixedLimiter struct {
	allowed bool
	keys    []string
}

func (f *fixedLimiter) CheckRateLimit(_ context.Context, key string, _ int64, window time.Duration) (*redis.RateLimitResult, error) {
	f.keys = append(f.keys, key)
	return &redis.RateLimitResult{Allowed: f.allowed, ResetAt: time.Now().Add(window)}, nil
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	limiter := &fixedLimiter{allowed: false}
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/create", nil)
	req = req.WithContext(WithActor(req.Context(), authz.Actor{ID: "u-9", Role: model.RoleBuyer}))
	rec := httptest.NewRecorder()

	RateLimit(limiter, "checkout", 10, time.Minute)(ok).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, []string{"checkout:u-9"}, limiter.keys)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	limiter.allowed = true
	rec = httptest.NewRecorder()
	RateLimit(limiter, "checkout", 10, time.Minute)(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session token issued by the auth service.
type Claims struct {
	Role  model.Role `json:"role"`
	Email string     `json:"email,omitempty"`
	Name  string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IdentityStore caches who the callers are for admin views and notifications.
type IdentityStore interface {
	Touch(ctx context.Context, u model.User) error
}

type Auth struct {
	secret     []byte
	cookieName string
	identities IdentityStore
}

func NewAuth(secret, cookieName string, identities IdentityStore) *Auth {
	return &Auth{
		secret:     []byte(secret),
		cookieName: cookieName,
		identities: identities,
	}
}

func (a *Auth) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Parse validates an HS256 session token and returns its caller.
func (a *Auth) Parse(raw string) (authz.Actor, *Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authz.Actor{}, nil, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return authz.Actor{}, nil, jwt.ErrTokenInvalidSubject
	}

	role := claims.Role
	if role == "" {
		role = model.RoleBuyer
	}
	return authz.Actor{ID: sub, Role: role}, claims, nil
}

// Authenticate attaches the caller to the context when a valid token is
// present. Anonymous requests pass through; RequireAuth rejects them.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := a.token(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor, claims, err := a.Parse(raw)
		if err != nil {
			GetLogger(r.Context()).Debug().Err(err).Msg("ignoring invalid session token")
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithActor(r.Context(), actor)

		l := GetLogger(ctx).With().Str("user_id", actor.ID).Str("role", string(actor.Role)).Logger()
		ctx = WithLogger(ctx, &l)

		if a.identities != nil {
			u := model.User{ID: actor.ID, Email: claims.Email, Name: claims.Name, Role: actor.Role}
			if err := a.identities.Touch(ctx, u); err != nil {
				l.Warn().Err(err).Msg("failed to cache identity")
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without an authenticated caller.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFrom(r.Context()).ID == "" {
			writeError(w, apperr.ErrUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

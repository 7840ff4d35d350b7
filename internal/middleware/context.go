package middleware

import (
	"context"
	"net/http"

	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/logger"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/server"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	LoggerKey   contextKey = "logger"
)

type ContextEnhancer struct {
	Server *server.Server
}

func NewContextEnhancer(srv *server.Server) *ContextEnhancer {
	return &ContextEnhancer{
		Server: srv,
	}
}

func (ce *ContextEnhancer) EnhanceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r)

		contextLogger := ce.Server.Logger.With().
			Str("request_id", requestID).
			Str("ip", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		if txn := newrelic.FromContext(r.Context()); txn != nil {
			contextLogger = logger.WithTraceContext(contextLogger, txn)
		}

		ctx := WithLogger(r.Context(), &contextLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithLogger stores l for GetLogger. Workers use it to hand their logger to services.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// GetLogger retrieves the logger from the context.
func GetLogger(ctx context.Context) *zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zerolog.Logger); ok {
		return logger
	}
	logger := zerolog.Nop()
	return &logger
}

// WithActor stores the authenticated caller.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, actor.ID)
	return context.WithValue(ctx, UserRoleKey, actor.Role)
}

// ActorFrom returns the authenticated caller, or the zero Actor when the
// request carried no valid credentials.
func ActorFrom(ctx context.Context) authz.Actor {
	id, _ := ctx.Value(UserIDKey).(string)
	role, _ := ctx.Value(UserRoleKey).(model.Role)
	return authz.Actor{ID: id, Role: role}
}

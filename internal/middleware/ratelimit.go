package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/redis"
)

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
}

// RateLimit caps requests per caller (or per IP when anonymous) inside a
// sliding window. Redis failures let the request through.
func RateLimit(limiter RateLimiter, scope string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := ActorFrom(r.Context()).ID
			if subject == "" {
				subject = "ip:" + r.RemoteAddr
			}

			res, err := limiter.CheckRateLimit(r.Context(), scope+":"+subject, limit, window)
			if err != nil {
				GetLogger(r.Context()).Warn().Err(err).Str("scope", scope).Msg("rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(res.ResetAt).Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errInternal = errors.New("internal")

func writeError(w http.ResponseWriter, kind error, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

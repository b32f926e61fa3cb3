package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/cache"
)

// Per-user API rate limit.
const (
	apiRequestsPerMinute = 120
	apiBurst             = 30
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger *slog.Logger
	Cache  *cache.Cache
	// API rate limiting (per authenticated user)
	APIEnabled bool
	// Auth endpoint rate limiting (per IP, slows brute forcing)
	AuthEnabled bool
	AuthRPS     int
	AuthBurst   int
}

// limitCheck resolves the bucket for one request. The returned subject
// identifies who is being limited, for logging only.
type limitCheck func(ctx context.Context, r *http.Request) (subject string, result *cache.RateLimitResult, err error)

// RateLimitAPI returns middleware that rate limits API requests per
// authenticated user. Must be applied after Auth middleware.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	check := func(ctx context.Context, r *http.Request) (string, *cache.RateLimitResult, error) {
		identity := auth.IdentityFromContext(ctx)
		if identity == nil {
			// Auth middleware did not run; nothing to key the bucket on.
			return "", nil, nil
		}
		result, err := cfg.Cache.CheckUserRateLimit(ctx, identity.UserID, apiRequestsPerMinute, apiBurst)
		return identity.UserID, result, err
	}
	return limiter(cfg, cfg.APIEnabled, check)
}

// RateLimitAuth returns middleware that rate limits unauthenticated auth
// endpoints (login/register) per client IP.
func RateLimitAuth(cfg RateLimitConfig) func(http.Handler) http.Handler {
	check := func(ctx context.Context, r *http.Request) (string, *cache.RateLimitResult, error) {
		result, err := cfg.Cache.CheckIPRateLimit(ctx, r.RemoteAddr, cfg.AuthRPS, cfg.AuthBurst)
		return r.RemoteAddr, result, err
	}
	return limiter(cfg, cfg.AuthEnabled, check)
}

// limiter wraps a handler with one token-bucket check. Redis failures
// fail open: an unavailable cache must not take the API down with it.
func limiter(cfg RateLimitConfig, enabled bool, check limitCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			subject, result, err := check(r.Context(), r)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("subject", subject),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"Too many requests"}}`))
}

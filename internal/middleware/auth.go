// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/metrics"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/service"
)

// IdentityResolver resolves a bearer token to an Identity.
// Implemented by *service.AuthService.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver IdentityResolver
	Metrics  metrics.Recorder
}

// Auth returns a middleware that authenticates requests with a bearer
// token. It extracts the token from the Authorization header, resolves
// the identity, and injects it into the request context. Any failure
// short-circuits with 401 before the wrapped handler runs.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_or_malformed_header"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncTokenRejected()
				writeAuthError(w)
				return
			}

			identity, err := cfg.Resolver.ResolveIdentity(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "invalid_token"),
						slog.String("ip", r.RemoteAddr),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				} else {
					// Store failure. Still fail closed; the client only
					// ever sees the uniform 401 body.
					cfg.Logger.Error("identity resolution error",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				writeAuthError(w)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the token from an "Authorization: Bearer"
// header. Returns false for a missing header, a different scheme, or an
// empty token.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing bearer token"}}`))
}

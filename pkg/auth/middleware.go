package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"chirpd/pkg/apperr"
	"chirpd/pkg/logger"
)

// MiddlewareConfig holds the transport-level security settings.
type MiddlewareConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

type ctxKey struct{}

// FromContext returns the authenticated principal, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// WithPrincipal returns a context carrying the principal. Exposed for
// handler tests.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Middleware applies CORS, per-client rate limiting and session parsing.
// A valid bearer token attaches the principal to the request context; an
// absent or invalid one leaves the request anonymous so public endpoints
// still work. RequireAuth gates the protected ones.
func (s *Sessions) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{rps: cfg.RPS, burst: cfg.Burst}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !limiters.Allow(clientIP(r)) {
				logger.Warn("request_rate_limited", "remote", r.RemoteAddr, "path", r.URL.Path)
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			if token := bearerToken(r); token != "" {
				p, err := s.Verify(token)
				if err != nil {
					logger.Debug("session_rejected", "remote", r.RemoteAddr, "error", err)
				} else {
					r = r.WithContext(WithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests that carry no authenticated principal.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "authentication required"))
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/ratelimit"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RateLimitMiddleware enforces a per-client-IP sliding-window limit. The
// public intake form runs with a much tighter limit than the admin surface.
// A limiter failure lets the request through: losing rate limiting briefly
// beats dropping customer inquiries.
func RateLimitMiddleware(limiter ratelimit.Limiter, scope string, limitPerMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			key := scope + ":" + clientIP(r)

			allowed, remaining, err := limiter.AllowRequest(ctx, key, limitPerMin, 60)
			if err != nil {
				log.Error(ctx, "rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(60*time.Second).Unix()))

			if !allowed {
				span := trace.SpanFromContext(ctx)
				span.AddEvent("rate_limit_exceeded")

				log.Warn(ctx, "rate limit exceeded",
					zap.String("scope", scope),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", "60")
				httperr.TooManyRequests429(w, ctx, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package auth

import (
	"context"
	"errors"
	"net/http"

	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/observability/logger"

	"go.uber.org/zap"
)

type contextKey string

const claimsContextKey contextKey = "session_claims"

// SessionMiddleware guards the admin surface. Requests without a valid
// session cookie never reach the handlers; valid sessions put the admin email
// into the logging context so every entry downstream carries the actor.
func SessionMiddleware(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			claims, err := sessions.Verify(r)
			if err != nil {
				log.Warn(ctx, "session verification failed",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, ErrMissingSession):
					httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingSession, "authentication required")
				case errors.Is(err, ErrSessionExpired):
					httperr.Unauthorized401(w, ctx, httperr.ErrCodeSessionExpired, "session expired")
				default:
					httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidSession, "invalid session")
				}
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey, claims)
			ctx = logger.SetAdminEmailInContext(ctx, claims.Email)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the session claims from context.
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*SessionClaims)
	return claims, ok
}

// ActorEmail returns the authenticated admin's email, or empty when the
// request is unauthenticated (public surface).
func ActorEmail(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok {
		return claims.Email
	}
	return ""
}

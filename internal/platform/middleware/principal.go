package middleware

import (
	"context"
	"log/slog"
	"net/http"

	authmodels "trailmark/internal/auth/models"
	"trailmark/internal/auth/resolver"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/httputil"
)

// Request headers carrying credentials.
const (
	HeaderClientToken = "X-Client-Token"
	HeaderUserID      = "X-User-Id"
	HeaderUserToken   = "X-User-Token"
)

// Principal resolves request credentials into a principal and attaches it to
// the context. Requests without credentials pass through as Anonymous;
// endpoints needing more reject the variant themselves.
func Principal(r *resolver.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return principalMiddleware(r.Resolve, logger)
}

// RequirePrincipal is the strict variant: anonymous requests are rejected
// with 401 before the handler runs.
func RequirePrincipal(r *resolver.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return principalMiddleware(r.RequireAuth, logger)
}

type resolveFunc func(context.Context, resolver.Credentials) (authmodels.Principal, error)

func principalMiddleware(resolve resolveFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credentials := resolver.Credentials{
				ClientToken: r.Header.Get(HeaderClientToken),
				UserID:      r.Header.Get(HeaderUserID),
				UserToken:   r.Header.Get(HeaderUserToken),
			}

			principal, err := resolve(r.Context(), credentials)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUpstream) || dErrors.HasCode(err, dErrors.CodeInternal) {
					logger.ErrorContext(r.Context(), "principal resolution failed",
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authmodels.WithPrincipal(r.Context(), principal)))
		})
	}
}

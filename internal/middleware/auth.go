package middleware

import (
	"context"
	"net/http"
	"strings"

	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/transport"
)

type requesterKey struct{}

// RequireAuth parses the Bearer token and stores the Requester in the
// request context. Every appointment route runs behind it.
func RequireAuth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			claims, err := manager.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			requester := auth.Requester{ID: claims.Subject, Role: claims.Role}
			ctx := context.WithValue(r.Context(), requesterKey{}, requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route to a subset of roles. Must run after
// RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requester, ok := RequesterFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if _, ok := allowed[requester.Role]; !ok {
				transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequesterFromContext(ctx context.Context) (auth.Requester, bool) {
	if v := ctx.Value(requesterKey{}); v != nil {
		if requester, ok := v.(auth.Requester); ok {
			return requester, true
		}
	}
	return auth.Requester{}, false
}

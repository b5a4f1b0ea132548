package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/service"
)

type contextKeyAuth string

// PrivilegeKey is the context key for the resolved caller privilege.
const PrivilegeKey contextKeyAuth = "privilege"

// BearerToken extracts the bearer value from the Authorization header.
// Returns "" when the header is missing or not a Bearer scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Resolve returns a middleware that maps the request's bearer token to a
// Privilege and attaches it to the context. It never rejects: missing or
// dead tokens resolve to anonymous, and the route decides what that means.
func Resolve(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			priv, err := authSvc.ResolvePrivilege(r.Context(), BearerToken(r))
			if err != nil {
				writeAuthError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			ctx := context.WithValue(r.Context(), PrivilegeKey, priv)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous callers with 401. Must run after Resolve.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetPrivilege(r.Context()).Level == service.LevelAnonymous {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects callers without admin privilege with 403. Both a
// password admin and an admin-role key holder pass. Must run after Resolve.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetPrivilege(r.Context()).IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrivilege extracts the resolved privilege from the context. Requests
// that never passed through Resolve read as anonymous.
func GetPrivilege(ctx context.Context) service.Privilege {
	if p, ok := ctx.Value(PrivilegeKey).(service.Privilege); ok {
		return p
	}
	return service.Anonymous()
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Response{Success: false, Message: message}) //nolint:errcheck
}

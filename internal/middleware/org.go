package middleware

import (
	"context"
	"net/http"
)

// OrgResolver resolves the caller's active organization. Authentication is
// handled upstream; the gateway forwards the authenticated user id.
type OrgResolver interface {
	ActiveOrg(ctx context.Context, userID string) (string, error)
}

type Middleware struct {
	Orgs OrgResolver
}

func NewMiddleware(orgs OrgResolver) *Middleware {
	return &Middleware{Orgs: orgs}
}

// context key
type contextKey string

const OrgKey contextKey = "org"

// OrgScope resolves and attaches the caller's active organization id. The
// engine uses it only to namespace batch cache keys.
func (m *Middleware) OrgScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			http.Error(w, "missing X-User-Id header", http.StatusUnauthorized)
			return
		}

		orgID, err := m.Orgs.ActiveOrg(r.Context(), userID)
		if err != nil {
			http.Error(w, "could not resolve active organization", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OrgKey, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Helper to extract the active org id
func Org(ctx context.Context) string {
	org, _ := ctx.Value(OrgKey).(string)
	return org
}

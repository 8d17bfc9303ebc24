package identity

import (
	"context"
	"net/http"
	"strings"
)

// Role enumerates the caller roles the engine distinguishes.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity describes the already-authenticated caller. Authentication itself
// happens upstream; the gateway forwards the verified subject on trusted
// headers.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type contextKey string

const identityContextKey contextKey = "github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/identity"

const (
	userHeader = "X-User-Id"
	roleHeader = "X-User-Role"
)

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext retrieves the caller identity when present.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || strings.TrimSpace(id.UserID) == "" {
		return Identity{}, false
	}
	return id, true
}

// Middleware extracts the forwarded identity headers and stores them on the
// request context. Requests without a subject pass through unauthenticated;
// handlers decide whether that is acceptable.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userHeader))
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(roleHeader))))
			if role != RoleAdmin {
				role = RoleCustomer
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: userID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

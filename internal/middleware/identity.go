package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tegward/housepoints/internal/config"
)

// Forum gateway headers. The reverse proxy in front of this service
// authenticates the forum session and forwards the caller's identity.
const (
	HeaderUserID   = "X-Forum-User-Id"
	HeaderUserName = "X-Forum-User-Name"
	HeaderGroupID  = "X-Forum-Group-Id"
	HeaderAdmin    = "X-Forum-Admin"
)

// Identity describes the forum user making a request.
type Identity struct {
	UserID  int64
	Name    string
	GroupID int64
	Admin   bool
}

type identityKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity from the context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Identify parses the forum gateway headers and, when a user id is
// present, attaches the caller's identity to the request context.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		id := Identity{
			UserID: userID,
			Name:   r.Header.Get(HeaderUserName),
		}
		if gid, err := strconv.ParseInt(r.Header.Get(HeaderGroupID), 10, 64); err == nil && gid > 0 {
			id.GroupID = gid
		}
		switch r.Header.Get(HeaderAdmin) {
		case "1", "true":
			id.Admin = true
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireUser rejects requests that carry no forum identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEditor allows admins and members of the configured editor groups.
func RequireEditor(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !id.Admin && !cfg.IsEditorGroup(id.GroupID) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows admins only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !id.Admin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

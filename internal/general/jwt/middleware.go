package jwt

import (
	"encoding/json"
	"errors"
	"net/http"

	"geotrack/internal/domain/access"
)

// AuthMiddlewareFunc authenticates the bearer token of HTTP requests and
// injects the claims into the request context. A bad or missing token is 401;
// a valid token with another role is 403.
func AuthMiddlewareFunc(mgr *Manager, allowedRoles ...access.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := FromAuthorization(r)
			if err != nil {
				deny(w, http.StatusUnauthorized, err)
				return
			}

			claims, err := mgr.Authenticate(raw, allowedRoles...)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrRoleForbidden) {
					status = http.StatusForbidden
				}
				deny(w, status, err)
				return
			}

			next(w, r.WithContext(InjectClaims(r.Context(), claims)))
		}
	}
}

// RequireClaims returns the claims injected by AuthMiddlewareFunc, or nil.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}

func deny(w http.ResponseWriter, status int, err error) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="geotrack"`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

package jwt

import (
	"encoding/json"
	"net/http"

	"marketplace/internal/domain/user"
)

// MsgForbidden is the body text of role rejections.
const MsgForbidden = "Unauthorized access"

// AuthMiddleware validates tokens and injects claims into the request context. Used for HTTP routes.
func (m *Manager) AuthMiddleware(allowedRoles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// extract token from header, cookie or query
			raw, err := FromAuthorization(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			_, claims, err := m.ParseAndValidate(raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if len(allowedRoles) > 0 {
				if err := RoleAllowed(claims, allowedRoles...); err != nil {
					writeAuthError(w, http.StatusForbidden, MsgForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(InjectClaims(r.Context(), claims)))
		})
	}
}

// RequireClaims extracts JWT claims from the request context.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

package jwt

import (
	"errors"
	"net/http"
	"strings"
)

var ErrNoUpgradeToken = errors.New("websocket upgrade carries no token")

// IdentityFromUpgrade validates the bearer token presented on a WebSocket upgrade request
// and returns the token subject. Browsers cannot set headers on upgrades, so the
// token may also come from the accessToken cookie or the ?token= query parameter.
func (m *Manager) IdentityFromUpgrade(r *http.Request) (string, error) {
	raw, err := FromAuthorization(r)
	if err != nil {
		return "", ErrNoUpgradeToken
	}

	_, claims, err := m.ParseAndValidate(raw)
	if err != nil {
		return "", err
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", ErrEmptySubject
	}
	return sub, nil
}

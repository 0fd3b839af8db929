package cli

import (
	"fmt"
	"time"

	"marketplace/internal/domain/user"
	"marketplace/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a seeded user. Dev tooling only.
//
//	token, _, err := cli.GenerateUserToken(secret, "seller-1", "seller", 2*time.Hour)
func GenerateUserToken(secret, userID, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	mgr := jwt.NewManager(secret, ttl)
	token, claims, err := mgr.IssueUserToken(userID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}

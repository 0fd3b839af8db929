package user

import (
	"errors"
	"strings"
	"time"

	"marketplace/internal/domain/geo"
)

// User is the slice of a marketplace account the location subsystem cares about.
// LastLocation is nil when unknown or cleared.
type User struct {
	ID              string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Role            Role
	LocationSharing bool
	LastLocation    *geo.Point
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
	ErrEmptyID       = errors.New("user id cannot be empty")
	ErrNotSeller     = errors.New("user is not a seller")
	ErrBadTimestamps = errors.New("updated_at cannot be before created_at")
)

// NewUser constructs a User with sharing off and no known location.
func NewUser(id string, role Role) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:        strings.TrimSpace(id),
		CreatedAt: now,
		UpdatedAt: now,
		Role:      role,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks invariants of the User entity.
func (user *User) Validate() error {
	if strings.TrimSpace(user.ID) == "" {
		return ErrEmptyID
	}
	if !user.Role.Valid() {
		return ErrInvalidRole
	}
	if user.LastLocation != nil {
		if err := user.LastLocation.Validate(); err != nil {
			return err
		}
	}
	if !user.CreatedAt.IsZero() && !user.UpdatedAt.IsZero() && user.UpdatedAt.Before(user.CreatedAt) {
		return ErrBadTimestamps
	}
	return nil
}

// ----- Setters and helpers -----

// EnableSharing turns location sharing on. Only sellers may share.
func (user *User) EnableSharing() error {
	if !user.Role.IsSeller() {
		return ErrNotSeller
	}
	user.LocationSharing = true
	user.touch()
	return nil
}

// DisableSharing turns location sharing off and forgets the last location.
func (user *User) DisableSharing() {
	user.LocationSharing = false
	user.LastLocation = nil
	user.touch()
}

// MoveTo records a new last location. Only sellers carry a location.
func (user *User) MoveTo(p geo.Point) error {
	if !user.Role.IsSeller() {
		return ErrNotSeller
	}
	if err := p.Validate(); err != nil {
		return err
	}
	user.LastLocation = &p
	user.touch()
	return nil
}

// CanBroadcastLocation reports whether location updates from this user are accepted.
func (user *User) CanBroadcastLocation() bool {
	return user.Role.IsSeller() && user.LocationSharing
}

// touch sets UpdatedAt to now (UTC).
func (user *User) touch() {
	user.UpdatedAt = time.Now().UTC()
}

func (user *User) IsSeller() bool { return user.Role.IsSeller() }

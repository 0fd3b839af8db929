package ports

import (
	"context"

	"marketplace/internal/domain/geo"
	"marketplace/internal/domain/user"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserDirectory is the authoritative store of users as seen by the location subsystem.
// The sharing flag and the last location are written independently so that a toggle
// and a location update racing each other never undo one another's field.
type UserDirectory interface {
	// Create inserts a new user; returns user.ErrAlreadyExists on duplicate ids.
	Create(ctx context.Context, u *user.User) error
	// FindByID returns user.ErrNotFound when no such user exists.
	FindByID(ctx context.Context, id string) (*user.User, error)
	// SetSharing flips the sharing flag; disabling also clears the last location.
	SetSharing(ctx context.Context, id string, enabled bool) error
	// SetLocation overwrites the last location only.
	SetLocation(ctx context.Context, id string, p geo.Point) error
}

package memory

import (
	"context"
	"sync"

	"marketplace/internal/domain/geo"
	"marketplace/internal/domain/user"
	"marketplace/internal/ports"
)

// UserDirectory keeps users in a mutex-guarded map. Callers always get copies.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]user.User
}

var _ ports.UserDirectory = (*UserDirectory)(nil)

// NewUserDirectory constructs an empty in-memory directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[string]user.User)}
}

// Create inserts a new user.
func (d *UserDirectory) Create(_ context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.ID]; ok {
		return user.ErrAlreadyExists
	}
	d.users[u.ID] = clone(*u)
	return nil
}

// FindByID returns a copy of the stored user.
func (d *UserDirectory) FindByID(ctx context.Context, id string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	out := clone(u)
	return &out, nil
}

// SetSharing flips the flag; only sellers may enable it and disabling clears the last location.
func (d *UserDirectory) SetSharing(ctx context.Context, id string, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return user.ErrNotFound
	}
	if enabled {
		if err := u.EnableSharing(); err != nil {
			return err
		}
	} else {
		u.DisableSharing()
	}
	d.users[id] = u
	return nil
}

// SetLocation overwrites the last location only; non-sellers get user.ErrNotSeller.
func (d *UserDirectory) SetLocation(ctx context.Context, id string, p geo.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return user.ErrNotFound
	}
	if err := u.MoveTo(p); err != nil {
		return err
	}
	d.users[id] = u
	return nil
}

func clone(u user.User) user.User {
	if u.LastLocation != nil {
		p := *u.LastLocation
		u.LastLocation = &p
	}
	return u
}

// unitOfWork has no transactions to offer; it runs fn directly.
type unitOfWork struct{}

// NewUnitOfWork returns a UnitOfWork for the in-memory directory.
func NewUnitOfWork() ports.UnitOfWork {
	return unitOfWork{}
}

func (unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

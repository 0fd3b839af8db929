package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/domain/geo"
	"marketplace/internal/domain/user"
	"marketplace/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo persists users using pgx and plain SQL.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo(pool *pgxpool.Pool) ports.UserDirectory {
	return &UserRepo{pool: pool}
}

// EnsureSchema creates the users table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			role             TEXT NOT NULL CHECK (role IN ('buyer', 'seller', 'admin')),
			location_sharing BOOLEAN NOT NULL DEFAULT false,
			last_lat         DOUBLE PRECISION,
			last_lng         DOUBLE PRECISION,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

// Create inserts a new user row.
func (repo *UserRepo) Create(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	var lat, lng *float64
	if u.LastLocation != nil {
		lat, lng = &u.LastLocation.Lat, &u.LastLocation.Lng
	}

	tag, err := querierFrom(ctx, repo.pool).Exec(ctx, `
		INSERT INTO users (id, role, location_sharing, last_lat, last_lng)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`,
		u.ID,
		u.Role.String(),
		u.LocationSharing,
		lat,
		lng,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrAlreadyExists
	}
	return nil
}

// FindByID returns one user by id.
func (repo *UserRepo) FindByID(ctx context.Context, id string) (*user.User, error) {
	var (
		out      user.User
		roleText string
		lat, lng *float64
	)

	err := querierFrom(ctx, repo.pool).QueryRow(ctx, `
		SELECT id, created_at, updated_at, role, location_sharing, last_lat, last_lng
		FROM users
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt,
		&roleText, &out.LocationSharing, &lat, &lng,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out.Role = user.Role(roleText)
	if lat != nil && lng != nil {
		out.LastLocation = &geo.Point{Lat: *lat, Lng: *lng}
	}

	return &out, nil
}

// SetSharing flips location_sharing; turning it off also nulls the last location.
func (repo *UserRepo) SetSharing(ctx context.Context, id string, enabled bool) error {
	tag, err := querierFrom(ctx, repo.pool).Exec(ctx, `
		UPDATE users
		SET location_sharing = $2,
		    last_lat = CASE WHEN $2 THEN last_lat ELSE NULL END,
		    last_lng = CASE WHEN $2 THEN last_lng ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
	`, id, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetLocation writes last_lat/last_lng only; location_sharing is left untouched.
func (repo *UserRepo) SetLocation(ctx context.Context, id string, p geo.Point) error {
	tag, err := querierFrom(ctx, repo.pool).Exec(ctx, `
		UPDATE users
		SET last_lat = $2, last_lng = $3, updated_at = now()
		WHERE id = $1
	`, id, p.Lat, p.Lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

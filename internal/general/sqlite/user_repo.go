// Package sqlite is the embedded single-node backend of the user directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain/geo"
	"marketplace/internal/domain/user"
	"marketplace/internal/ports"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// a single writer avoids SQLITE_BUSY and keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			role             TEXT NOT NULL CHECK (role IN ('buyer', 'seller', 'admin')),
			location_sharing INTEGER NOT NULL DEFAULT 0,
			last_lat         REAL,
			last_lng         REAL,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return db, nil
}

// UserRepo persists users in SQLite.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo(db *sql.DB) ports.UserDirectory {
	return &UserRepo{db: db}
}

// Create inserts a new user row.
func (repo *UserRepo) Create(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	var lat, lng sql.NullFloat64
	if u.LastLocation != nil {
		lat = sql.NullFloat64{Float64: u.LastLocation.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: u.LastLocation.Lng, Valid: true}
	}
	now := time.Now().UTC().UnixMilli()

	res, err := execer(ctx, repo.db).ExecContext(ctx, `
		INSERT INTO users (id, role, location_sharing, last_lat, last_lng, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Role.String(), u.LocationSharing, lat, lng, now, now)
	if err != nil {
		return err
	}
	return affectedOr(res, user.ErrAlreadyExists)
}

// FindByID returns one user by id.
func (repo *UserRepo) FindByID(ctx context.Context, id string) (*user.User, error) {
	var (
		out                  user.User
		roleText             string
		lat, lng             sql.NullFloat64
		createdAt, updatedAt int64
	)

	err := execer(ctx, repo.db).QueryRowContext(ctx, `
		SELECT id, role, location_sharing, last_lat, last_lng, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id).Scan(&out.ID, &roleText, &out.LocationSharing, &lat, &lng, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out.Role = user.Role(roleText)
	out.CreatedAt = time.UnixMilli(createdAt).UTC()
	out.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if lat.Valid && lng.Valid {
		out.LastLocation = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &out, nil
}

// SetSharing flips location_sharing; turning it off also nulls the last location.
func (repo *UserRepo) SetSharing(ctx context.Context, id string, enabled bool) error {
	res, err := execer(ctx, repo.db).ExecContext(ctx, `
		UPDATE users
		SET location_sharing = ?1,
		    last_lat = CASE WHEN ?1 THEN last_lat ELSE NULL END,
		    last_lng = CASE WHEN ?1 THEN last_lng ELSE NULL END,
		    updated_at = ?2
		WHERE id = ?3
	`, enabled, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return err
	}
	return affectedOr(res, user.ErrNotFound)
}

// SetLocation writes last_lat/last_lng only.
func (repo *UserRepo) SetLocation(ctx context.Context, id string, p geo.Point) error {
	res, err := execer(ctx, repo.db).ExecContext(ctx, `
		UPDATE users SET last_lat = ?, last_lng = ?, updated_at = ? WHERE id = ?
	`, p.Lat, p.Lng, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return err
	}
	return affectedOr(res, user.ErrNotFound)
}

func affectedOr(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

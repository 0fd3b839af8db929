package locationservice

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/domain/user"
	"marketplace/internal/general/config"
	"marketplace/internal/general/logger"
	"marketplace/internal/general/memory"
	"marketplace/internal/general/postgres"
	"marketplace/internal/general/sqlite"
	"marketplace/internal/ports"
)

// directory bundles the selected user directory backend with its unit of work.
type directory struct {
	users ports.UserDirectory
	uow   ports.UnitOfWork
	close func()
}

// openDirectory connects the backend named by directory.driver.
func openDirectory(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*directory, error) {
	switch cfg.Directory.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &directory{
			users: postgres.NewUserRepo(pool),
			uow:   postgres.NewUnitOfWork(pool),
			close: pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Directory.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &directory{
			users: sqlite.NewUserRepo(db),
			uow:   sqlite.NewUnitOfWork(db),
			close: func() { _ = db.Close() },
		}, nil

	case config.DriverMemory:
		return &directory{
			users: memory.NewUserDirectory(),
			uow:   memory.NewUnitOfWork(),
			close: func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown directory driver %q", cfg.Directory.Driver)
	}
}

// seedUsers inserts the configured users that do not exist yet and applies their sharing flag.
func seedUsers(ctx context.Context, users ports.UserDirectory, seeds []config.SeedUser, logger *logger.Logger) error {
	for _, s := range seeds {
		role, err := user.ParseRole(s.Role)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.ID, err)
		}
		u, err := user.NewUser(s.ID, role)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.ID, err)
		}

		created := true
		if err := users.Create(ctx, u); err != nil {
			if !errors.Is(err, user.ErrAlreadyExists) {
				return fmt.Errorf("seed %s: %w", s.ID, err)
			}
			created = false
		}
		if s.Sharing && role.IsSeller() {
			if err := users.SetSharing(ctx, s.ID, true); err != nil {
				return fmt.Errorf("seed %s: %w", s.ID, err)
			}
		}

		logger.Debug(ctx, "user_seeded", "Seed user applied", map[string]any{
			"user_id": s.ID,
			"role":    role.String(),
			"created": created,
			"sharing": s.Sharing,
		})
	}
	return nil
}

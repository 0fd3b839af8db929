package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"marketplace/internal/domain/geo"
	"marketplace/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *UserRepo {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db).(*UserRepo)
}

func TestUserRepoLifecycle(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	u, err := user.NewUser("s1", user.RoleSeller)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, u))
	assert.ErrorIs(t, repo.Create(ctx, u), user.ErrAlreadyExists)

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.LocationSharing)
	assert.Nil(t, got.LastLocation)

	require.NoError(t, repo.SetSharing(ctx, "s1", true))
	require.NoError(t, repo.SetLocation(ctx, "s1", geo.Point{Lat: 40.7, Lng: -74}))

	got, err = repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.LocationSharing)
	require.NotNil(t, got.LastLocation)
	assert.Equal(t, geo.Point{Lat: 40.7, Lng: -74}, *got.LastLocation)

	require.NoError(t, repo.SetSharing(ctx, "s1", false))
	got, err = repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.LocationSharing)
	assert.Nil(t, got.LastLocation)
}

func TestUserRepoMissing(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.ErrorIs(t, repo.SetSharing(ctx, "ghost", true), user.ErrNotFound)
	assert.ErrorIs(t, repo.SetLocation(ctx, "ghost", geo.Point{}), user.ErrNotFound)
}

func TestSetLocationKeepsSharingFlag(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	u, err := user.NewUser("s1", user.RoleSeller)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, u))

	// location write after a toggle-off must not turn sharing back on
	require.NoError(t, repo.SetSharing(ctx, "s1", false))
	require.NoError(t, repo.SetLocation(ctx, "s1", geo.Point{Lat: 1, Lng: 2}))

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.LocationSharing)
}

func TestWithinTx(t *testing.T) {
	repo := openTestDB(t)
	uow := NewUnitOfWork(repo.db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := uow.WithinTx(ctx, func(ctx context.Context) error {
		u, err := user.NewUser("s1", user.RoleSeller)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, u))
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = repo.FindByID(ctx, "s1")
	assert.ErrorIs(t, err, user.ErrNotFound)

	err = uow.WithinTx(ctx, func(ctx context.Context) error {
		u, err := user.NewUser("s2", user.RoleBuyer)
		if err != nil {
			return err
		}
		return uow.WithinTx(ctx, func(ctx context.Context) error {
			return repo.Create(ctx, u)
		})
	})
	require.NoError(t, err)
	got, err := repo.FindByID(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, user.RoleBuyer, got.Role)
}

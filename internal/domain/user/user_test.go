package user

import (
	"testing"

	"marketplace/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Seller ")
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, role)

	_, err = ParseRole("driver")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestNewUserDefaults(t *testing.T) {
	u, err := NewUser("s1", RoleSeller)
	require.NoError(t, err)
	assert.False(t, u.LocationSharing)
	assert.Nil(t, u.LastLocation)
	assert.False(t, u.CanBroadcastLocation())

	_, err = NewUser(" ", RoleSeller)
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestSharingLifecycle(t *testing.T) {
	u, err := NewUser("s1", RoleSeller)
	require.NoError(t, err)

	require.NoError(t, u.EnableSharing())
	assert.True(t, u.CanBroadcastLocation())

	require.NoError(t, u.MoveTo(geo.Point{Lat: 1, Lng: 2}))
	require.NotNil(t, u.LastLocation)
	assert.Equal(t, geo.Point{Lat: 1, Lng: 2}, *u.LastLocation)

	u.DisableSharing()
	assert.False(t, u.CanBroadcastLocation())
	assert.Nil(t, u.LastLocation)
}

func TestBuyerCannotShareOrMove(t *testing.T) {
	u, err := NewUser("b1", RoleBuyer)
	require.NoError(t, err)

	assert.ErrorIs(t, u.EnableSharing(), ErrNotSeller)
	assert.ErrorIs(t, u.MoveTo(geo.Point{Lat: 1, Lng: 2}), ErrNotSeller)

	// a buyer with the flag forced on still cannot broadcast
	u.LocationSharing = true
	assert.False(t, u.CanBroadcastLocation())
}

func TestMoveToRejectsOutOfRange(t *testing.T) {
	u, err := NewUser("s1", RoleSeller)
	require.NoError(t, err)

	assert.ErrorIs(t, u.MoveTo(geo.Point{Lat: 91, Lng: 0}), geo.ErrInvalidLatitude)
	assert.ErrorIs(t, u.MoveTo(geo.Point{Lat: 0, Lng: -181}), geo.ErrInvalidLongitude)
	assert.Nil(t, u.LastLocation)
}

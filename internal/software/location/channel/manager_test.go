package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"marketplace/internal/domain/geo"
	"marketplace/internal/domain/user"
	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"
	"marketplace/internal/general/memory"
	"marketplace/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event   string
	Payload any
}

type fakeSession struct {
	id      string
	bound   string
	sendErr error
	panics  bool

	mu     sync.Mutex
	frames []frame
}

func (f *fakeSession) ID() string          { return f.id }
func (f *fakeSession) BoundUserID() string { return f.bound }
func (f *fakeSession) Close()              {}

func (f *fakeSession) Send(event string, payload any) error {
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{event, payload})
	return f.sendErr
}

func (f *fakeSession) received() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.frames...)
}

// failingDirectory wraps a directory and fails the selected operation.
type failingDirectory struct {
	ports.UserDirectory
	findErr error
	setErr  error
	panics  bool
}

func (d *failingDirectory) FindByID(ctx context.Context, id string) (*user.User, error) {
	if d.panics {
		panic("directory exploded")
	}
	if d.findErr != nil {
		return nil, d.findErr
	}
	return d.UserDirectory.FindByID(ctx, id)
}

func (d *failingDirectory) SetLocation(ctx context.Context, id string, p geo.Point) error {
	if d.setErr != nil {
		return d.setErr
	}
	return d.UserDirectory.SetLocation(ctx, id, p)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []contracts.SellerLocationMessage
	err  error
}

func (r *recordingPublisher) PublishSellerLocation(_ context.Context, msg contracts.SellerLocationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

type panickyPublisher struct{}

func (panickyPublisher) PublishSellerLocation(context.Context, contracts.SellerLocationMessage) error {
	panic("publisher bug")
}

func seed(t *testing.T, dir ports.UserDirectory, id string, role user.Role, sharing bool) {
	t.Helper()
	ctx := context.Background()
	u, err := user.NewUser(id, role)
	require.NoError(t, err)
	require.NoError(t, dir.Create(ctx, u))
	if sharing {
		require.NoError(t, dir.SetSharing(ctx, id, true))
	}
}

func update(id string, lat, lng float64) LocationUpdate {
	return LocationUpdate{UserID: id, Point: geo.Point{Lat: lat, Lng: lng}}
}

func setup(t *testing.T, opts ...Option) (*Manager, *memory.UserDirectory) {
	t.Helper()
	dir := memory.NewUserDirectory()
	seed(t, dir, "s1", user.RoleSeller, true)
	seed(t, dir, "s2", user.RoleSeller, false)
	seed(t, dir, "b1", user.RoleBuyer, false)
	return NewManager(logger.Nop(), dir, opts...), dir
}

func connect(m *Manager, ids ...string) []*fakeSession {
	out := make([]*fakeSession, len(ids))
	for i, id := range ids {
		out[i] = &fakeSession{id: id}
		m.OnConnect(out[i])
	}
	return out
}

func TestAcceptedUpdateReachesEveryPeerButSender(t *testing.T) {
	m, dir := setup(t)
	ss := connect(m, "A", "B", "C")
	ctx := context.Background()

	require.NoError(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 40.7, -74.0)))

	assert.Empty(t, ss[0].received())
	want := frame{contracts.EventSellerLocationUpdate, SellerLocationUpdate{UserID: "s1", Lat: 40.7, Lng: -74.0}}
	assert.Equal(t, []frame{want}, ss[1].received())
	assert.Equal(t, []frame{want}, ss[2].received())

	u, err := dir.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, u.LastLocation)
	assert.Equal(t, geo.Point{Lat: 40.7, Lng: -74.0}, *u.LastLocation)
}

func TestSharingDisabledIsRejectedToSenderOnly(t *testing.T) {
	m, dir := setup(t)
	ss := connect(m, "A", "B")
	ctx := context.Background()

	err := m.OnLocationUpdate(ctx, ss[0], update("s2", 1, 2))
	assert.ErrorIs(t, err, ErrSharingDisabled)
	assert.Equal(t, []frame{{contracts.EventError, MsgSharingDisabled}}, ss[0].received())
	assert.Empty(t, ss[1].received())

	u, err := dir.FindByID(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, u.LastLocation)
}

func TestNonSellerIsUnauthorized(t *testing.T) {
	m, dir := setup(t)
	ss := connect(m, "A", "B")
	ctx := context.Background()

	err := m.OnLocationUpdate(ctx, ss[0], update("b1", 1, 2))
	assert.ErrorIs(t, err, ErrUnauthorizedIdentity)
	assert.Equal(t, []frame{{contracts.EventError, MsgUnauthorized}}, ss[0].received())
	assert.Empty(t, ss[1].received())

	u, err := dir.FindByID(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, u.LastLocation)
}

func TestUnknownUserIsUnauthorized(t *testing.T) {
	m, _ := setup(t)
	ss := connect(m, "A", "B")

	err := m.OnLocationUpdate(context.Background(), ss[0], update("ghost", 1, 2))
	assert.ErrorIs(t, err, ErrUnauthorizedIdentity)
	assert.Equal(t, []frame{{contracts.EventError, MsgUnauthorized}}, ss[0].received())
	assert.Empty(t, ss[1].received())
}

func TestToggleOffStopsBroadcastsAndToggleOnResumes(t *testing.T) {
	m, dir := setup(t)
	ss := connect(m, "A", "B")
	ctx := context.Background()

	require.NoError(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 1, 1)))
	require.NoError(t, dir.SetSharing(ctx, "s1", false))
	assert.ErrorIs(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 2, 2)), ErrSharingDisabled)
	require.NoError(t, dir.SetSharing(ctx, "s1", true))
	require.NoError(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 3, 3)))

	got := ss[1].received()
	require.Len(t, got, 2)
	assert.Equal(t, SellerLocationUpdate{UserID: "s1", Lat: 1, Lng: 1}, got[0].Payload)
	assert.Equal(t, SellerLocationUpdate{UserID: "s1", Lat: 3, Lng: 3}, got[1].Payload)
}

func TestSingleSessionSendsNothing(t *testing.T) {
	m, _ := setup(t)
	ss := connect(m, "A")

	require.NoError(t, m.OnLocationUpdate(context.Background(), ss[0], update("s1", 1, 1)))
	assert.Empty(t, ss[0].received())
}

func TestConnectIsIdempotentAndDisconnectToo(t *testing.T) {
	m, _ := setup(t)
	a := &fakeSession{id: "A"}

	m.OnConnect(a)
	m.OnConnect(a)
	assert.Equal(t, 1, m.Count())

	m.OnDisconnect(a)
	m.OnDisconnect(a)
	assert.Equal(t, 0, m.Count())
}

func TestDisconnectUnknownSessionKeepsLiveSet(t *testing.T) {
	m, _ := setup(t)
	ss := connect(m, "A", "B")

	m.OnDisconnect(&fakeSession{id: "never-connected"})
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.OnLocationUpdate(context.Background(), ss[0], update("s1", 1, 1)))
	assert.Len(t, ss[1].received(), 1)
}

func TestRepeatedUpdateIsBroadcastEachTime(t *testing.T) {
	m, dir := setup(t)
	ss := connect(m, "A", "B")
	ctx := context.Background()

	require.NoError(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 1, 2)))
	require.NoError(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 1, 2)))

	want := frame{contracts.EventSellerLocationUpdate, SellerLocationUpdate{UserID: "s1", Lat: 1, Lng: 2}}
	assert.Equal(t, []frame{want, want}, ss[1].received())
	assert.Empty(t, ss[0].received())

	u, err := dir.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, u.LastLocation)
	assert.Equal(t, geo.Point{Lat: 1, Lng: 2}, *u.LastLocation)
}

func TestDisconnectedPeerGetsNothing(t *testing.T) {
	m, _ := setup(t)
	ss := connect(m, "A", "B", "C")
	m.OnDisconnect(ss[2])

	require.NoError(t, m.OnLocationUpdate(context.Background(), ss[0], update("s1", 1, 1)))
	assert.Len(t, ss[1].received(), 1)
	assert.Empty(t, ss[2].received())
}

func TestEventsFromClosedSessionAreIgnored(t *testing.T) {
	m, dir := setup(t)
	ss := connect(m, "A", "B")
	m.OnDisconnect(ss[0])

	require.NoError(t, m.OnLocationUpdate(context.Background(), ss[0], update("s1", 5, 5)))
	assert.Empty(t, ss[0].received())
	assert.Empty(t, ss[1].received())

	u, err := dir.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, u.LastLocation)
}

func TestDirectoryFaultIsServerError(t *testing.T) {
	base := memory.NewUserDirectory()
	seed(t, base, "s1", user.RoleSeller, true)

	cases := map[string]*failingDirectory{
		"find":  {UserDirectory: base, findErr: errors.New("db down")},
		"set":   {UserDirectory: base, setErr: errors.New("disk full")},
		"panic": {UserDirectory: base, panics: true},
	}
	for name, dir := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewManager(logger.Nop(), dir)
			ss := connect(m, "A", "B")

			err := m.OnLocationUpdate(context.Background(), ss[0], update("s1", 1, 1))
			assert.ErrorIs(t, err, ErrServerFault)
			assert.Equal(t, []frame{{contracts.EventError, MsgServerError}}, ss[0].received())
			assert.Empty(t, ss[1].received())
		})
	}
}

func TestFailingPeerDoesNotAffectOthers(t *testing.T) {
	m, _ := setup(t)
	a := &fakeSession{id: "A"}
	bad := &fakeSession{id: "B", sendErr: errors.New("queue full")}
	boom := &fakeSession{id: "C", panics: true}
	d := &fakeSession{id: "D"}
	for _, s := range []Session{a, bad, boom, d} {
		m.OnConnect(s)
	}

	require.NoError(t, m.OnLocationUpdate(context.Background(), a, update("s1", 1, 1)))
	assert.Len(t, bad.received(), 1)
	assert.Len(t, d.received(), 1)
}

func TestIdentityBinding(t *testing.T) {
	m, _ := setup(t, WithIdentityBinding(true))
	a := &fakeSession{id: "A", bound: "s2"}
	b := &fakeSession{id: "B"}
	m.OnConnect(a)
	m.OnConnect(b)

	err := m.OnLocationUpdate(context.Background(), a, update("s1", 1, 1))
	assert.ErrorIs(t, err, ErrUnauthorizedIdentity)
	assert.Equal(t, []frame{{contracts.EventError, MsgUnauthorized}}, a.received())
	assert.Empty(t, b.received())
}

func TestPublishersSeeAcceptedUpdatesOnly(t *testing.T) {
	m, _ := setup(t)
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	m.AddPublisher(failing)
	m.AddPublisher(ok)
	ss := connect(m, "A", "B")
	ctx := context.Background()

	require.NoError(t, m.OnLocationUpdate(ctx, ss[0], update("s1", 1, 2)))
	assert.Error(t, m.OnLocationUpdate(ctx, ss[0], update("s2", 1, 2)))

	require.Len(t, ok.msgs, 1)
	assert.Equal(t, "s1", ok.msgs[0].UserID)
	assert.Equal(t, 2.0, ok.msgs[0].Lng)
	assert.Equal(t, "location-service", ok.msgs[0].Producer)
	assert.Len(t, failing.msgs, 1)
	assert.Len(t, ss[1].received(), 1)
}

func TestPanickingPublisherKeepsUpdateAccepted(t *testing.T) {
	m, _ := setup(t)
	ok := &recordingPublisher{}
	m.AddPublisher(panickyPublisher{})
	m.AddPublisher(ok)
	ss := connect(m, "A", "B")

	require.NoError(t, m.OnLocationUpdate(context.Background(), ss[0], update("s1", 1, 2)))

	assert.Empty(t, ss[0].received())
	assert.Equal(t, []frame{{contracts.EventSellerLocationUpdate, SellerLocationUpdate{UserID: "s1", Lat: 1, Lng: 2}}}, ss[1].received())
	assert.Len(t, ok.msgs, 1)
}

func TestDeliverRemoteReachesAllLocalSessions(t *testing.T) {
	m, _ := setup(t)
	ss := connect(m, "A", "B")

	m.DeliverRemote(context.Background(), contracts.SellerLocationMessage{UserID: "s9", Lat: 3, Lng: 4})
	want := []frame{{contracts.EventSellerLocationUpdate, SellerLocationUpdate{UserID: "s9", Lat: 3, Lng: 4}}}
	assert.Equal(t, want, ss[0].received())
	assert.Equal(t, want, ss[1].received())
}

func TestDispatch(t *testing.T) {
	m, _ := setup(t)
	ss := connect(m, "A", "B")
	ctx := context.Background()

	m.Dispatch(ctx, ss[0], "dance", nil)
	m.Dispatch(ctx, ss[0], contracts.EventUpdateLocation, json.RawMessage(`{"userId":"s1","lat":"x"}`))
	m.Dispatch(ctx, ss[0], contracts.EventUpdateLocation, json.RawMessage(`{"userId":"s1","lat":91,"lng":0}`))
	m.Dispatch(ctx, ss[0], contracts.EventUpdateLocation, json.RawMessage(`{"userId":"s1","lat":10,"lng":20}`))

	assert.Equal(t, []frame{
		{contracts.EventError, MsgUnknownEvent},
		{contracts.EventError, MsgInvalidLocation},
		{contracts.EventError, MsgInvalidLocation},
	}, ss[0].received())
	assert.Equal(t, []frame{
		{contracts.EventSellerLocationUpdate, SellerLocationUpdate{UserID: "s1", Lat: 10, Lng: 20}},
	}, ss[1].received())
}

func TestConcurrentUpdatesAndChurn(t *testing.T) {
	m, _ := setup(t)
	ctx := context.Background()
	senders := connect(m, "A", "B")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.OnLocationUpdate(ctx, senders[i%2], update("s1", float64(j%90), 0))
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := &fakeSession{id: "churn"}
				m.OnConnect(s)
				m.OnDisconnect(s)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 2, m.Count())
}

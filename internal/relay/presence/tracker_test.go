package presence_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/presence"
	"github.com/example/fleetrelay/internal/relay/registry"
)

type fakeConn struct {
	id   uuid.UUID
	mu   sync.Mutex
	msgs [][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{id: uuid.New()} }

func (f *fakeConn) ID() uuid.UUID { return f.id }

func (f *fakeConn) Enqueue(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeConn) Messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func decodeOffline(t *testing.T, raw []byte) domain.DriverID {
	t.Helper()
	var env struct {
		Event string `json:"event"`
		Data  struct {
			DriverID domain.DriverID `json:"driverId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, domain.EventDriverOffline, env.Event)
	return env.Data.DriverID
}

func TestSweepAnnouncesExpiredDrivers(t *testing.T) {
	reg := registry.New(nil)
	admin := newFakeConn()
	reg.JoinAdmin(admin)

	clock := &fakeClock{t: time.Unix(0, 0).UTC()}
	tracker := presence.New(reg, clock, nil, presence.Config{TTL: 30 * time.Second, Interval: time.Second})

	tracker.Touch(42)
	clock.Advance(10 * time.Second)
	tracker.Sweep()
	require.Empty(t, admin.Messages())

	clock.Advance(25 * time.Second)
	tracker.Sweep()

	msgs := admin.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, domain.DriverID(42), decodeOffline(t, msgs[0]))

	// already expired drivers are not announced twice
	tracker.Sweep()
	require.Len(t, admin.Messages(), 1)
}

func TestTouchKeepsDriverOnline(t *testing.T) {
	reg := registry.New(nil)
	admin := newFakeConn()
	reg.JoinAdmin(admin)

	clock := &fakeClock{t: time.Unix(0, 0).UTC()}
	tracker := presence.New(reg, clock, nil, presence.Config{TTL: 30 * time.Second, Interval: time.Second})

	tracker.Touch(42)
	clock.Advance(20 * time.Second)
	tracker.Touch(42)
	clock.Advance(20 * time.Second)
	tracker.Sweep()
	require.Empty(t, admin.Messages())
}

func TestRemoveAnnouncesKnownDriver(t *testing.T) {
	reg := registry.New(nil)
	admin := newFakeConn()
	reg.JoinAdmin(admin)

	clock := &fakeClock{t: time.Unix(0, 0).UTC()}
	tracker := presence.New(reg, clock, nil, presence.Config{})

	tracker.Touch(7)
	tracker.Remove(7)
	msgs := admin.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, domain.DriverID(7), decodeOffline(t, msgs[0]))

	// removing an unknown driver stays silent
	tracker.Remove(99)
	require.Len(t, admin.Messages(), 1)
}

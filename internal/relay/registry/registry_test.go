package registry_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/fleetrelay/internal/relay/registry"
)

type fakeConn struct {
	id     uuid.UUID
	mu     sync.Mutex
	msgs   [][]byte
	reject bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (f *fakeConn) ID() uuid.UUID { return f.id }

func (f *fakeConn) Enqueue(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeConn) Messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	reg := registry.New(nil)
	sub := newFakeConn()
	other := newFakeConn()
	reg.Subscribe(sub, 42)
	reg.Subscribe(other, 7)

	delivered := reg.Publish(42, []byte("update"))
	require.Equal(t, 1, delivered)
	require.Len(t, sub.Messages(), 1)
	require.Empty(t, other.Messages())
}

func TestSubscribeIsIdempotent(t *testing.T) {
	reg := registry.New(nil)
	sub := newFakeConn()
	reg.Subscribe(sub, 42)
	reg.Subscribe(sub, 42)

	delivered := reg.Publish(42, []byte("update"))
	require.Equal(t, 1, delivered)
	require.Len(t, sub.Messages(), 1)
}

func TestUnsubscribeNeverSubscribedIsNoop(t *testing.T) {
	reg := registry.New(nil)
	sub := newFakeConn()
	reg.Unsubscribe(sub, 42)

	require.Equal(t, 0, reg.Publish(42, []byte("update")))
}

func TestPublishToEmptyTopic(t *testing.T) {
	reg := registry.New(nil)
	require.Equal(t, 0, reg.Publish(99, []byte("update")))
}

func TestPublishAdminReachesEveryObserver(t *testing.T) {
	reg := registry.New(nil)
	a := newFakeConn()
	b := newFakeConn()
	reg.JoinAdmin(a)
	reg.JoinAdmin(b)

	delivered := reg.PublishAdmin([]byte("update"))
	require.Equal(t, 2, delivered)
	require.Len(t, a.Messages(), 1)
	require.Len(t, b.Messages(), 1)
}

func TestDisconnectRemovesAllMemberships(t *testing.T) {
	reg := registry.New(nil)
	sub := newFakeConn()
	reg.Subscribe(sub, 1)
	reg.Subscribe(sub, 2)
	reg.JoinAdmin(sub)

	orphaned := reg.Disconnect(sub)
	require.Empty(t, orphaned)

	require.Equal(t, 0, reg.Publish(1, []byte("update")))
	require.Equal(t, 0, reg.Publish(2, []byte("update")))
	require.Equal(t, 0, reg.PublishAdmin([]byte("update")))
	require.Empty(t, sub.Messages())
}

func TestDisconnectReportsOrphanedDrivers(t *testing.T) {
	reg := registry.New(nil)
	ingress := newFakeConn()
	second := newFakeConn()
	reg.JoinAsDriver(ingress, 42)
	reg.JoinAsDriver(second, 42)

	// one of two ingress connections leaves: the driver is not orphaned
	require.Empty(t, reg.Disconnect(second))

	orphaned := reg.Disconnect(ingress)
	require.Equal(t, []int64{42}, toInt64s(orphaned))
}

func TestFailedEnqueueDoesNotCount(t *testing.T) {
	reg := registry.New(nil)
	slow := newFakeConn()
	slow.reject = true
	ok := newFakeConn()
	reg.Subscribe(slow, 42)
	reg.Subscribe(ok, 42)

	delivered := reg.Publish(42, []byte("update"))
	require.Equal(t, 1, delivered)
	require.Len(t, ok.Messages(), 1)
}

func toInt64s[T ~int64](in []T) []int64 {
	out := make([]int64, 0, len(in))
	for _, v := range in {
		out = append(out, int64(v))
	}
	return out
}

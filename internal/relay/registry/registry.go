package registry

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/fleetrelay/internal/relay/domain"
)

// Conn is one connection handle, whatever the transport behind it. Enqueue
// must not block; it reports false when the connection cannot accept the
// message (closed, or too slow to keep up).
type Conn interface {
	ID() uuid.UUID
	Enqueue(msg []byte) bool
}

// Registry tracks which connections care about which driver's updates: the
// per-driver subscriber sets, the driver-ingress sets, and the admin-observer
// channel. Membership lives only in memory for the lifetime of a connection;
// clients rebuild their subscriptions after a reconnect.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[domain.DriverID]map[uuid.UUID]Conn
	ingress     map[domain.DriverID]map[uuid.UUID]Conn
	admins      map[uuid.UUID]Conn

	// reverse indexes for cleanup on disconnect
	topicsByConn  map[uuid.UUID]map[domain.DriverID]struct{}
	ingressByConn map[uuid.UUID]map[domain.DriverID]struct{}

	logger *zap.Logger
}

// New constructs an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		subscribers:   make(map[domain.DriverID]map[uuid.UUID]Conn),
		ingress:       make(map[domain.DriverID]map[uuid.UUID]Conn),
		admins:        make(map[uuid.UUID]Conn),
		topicsByConn:  make(map[uuid.UUID]map[domain.DriverID]struct{}),
		ingressByConn: make(map[uuid.UUID]map[domain.DriverID]struct{}),
		logger:        logger,
	}
}

// JoinAsDriver binds a driver's ingress connection to its own topic.
func (r *Registry) JoinAsDriver(conn Conn, id domain.DriverID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ingress[id] == nil {
		r.ingress[id] = make(map[uuid.UUID]Conn)
	}
	r.ingress[id][conn.ID()] = conn
	if r.ingressByConn[conn.ID()] == nil {
		r.ingressByConn[conn.ID()] = make(map[domain.DriverID]struct{})
	}
	r.ingressByConn[conn.ID()][id] = struct{}{}
	connectedDrivers.Set(float64(len(r.ingress)))
}

// JoinAdmin adds the connection to the admin-observer channel.
func (r *Registry) JoinAdmin(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins[conn.ID()] = conn
	adminObservers.Set(float64(len(r.admins)))
}

// Subscribe adds the connection to the driver's topic. Subscribing twice is
// idempotent: the connection receives one copy of each update, not two.
func (r *Registry) Subscribe(conn Conn, id domain.DriverID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subscribers[id] == nil {
		r.subscribers[id] = make(map[uuid.UUID]Conn)
	}
	r.subscribers[id][conn.ID()] = conn
	if r.topicsByConn[conn.ID()] == nil {
		r.topicsByConn[conn.ID()] = make(map[domain.DriverID]struct{})
	}
	r.topicsByConn[conn.ID()][id] = struct{}{}
	topicSubscribers.Set(r.countSubscribersLocked())
}

// Unsubscribe removes the connection from the driver's topic. Removing a
// connection that never subscribed is a no-op.
func (r *Registry) Unsubscribe(conn Conn, id domain.DriverID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeSubscriptionLocked(conn.ID(), id)
	topicSubscribers.Set(r.countSubscribersLocked())
}

// Publish delivers the message to every current subscriber of the driver's
// topic. Delivery is fire and forget: a failed enqueue is counted and the
// transport is expected to tear the connection down on its own. A topic with
// zero subscribers accepts the publish and delivers to nobody. Returns the
// number of successful deliveries.
func (r *Registry) Publish(id domain.DriverID, msg []byte) int {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.subscribers[id]))
	for _, conn := range r.subscribers[id] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	return r.deliver(conns, msg)
}

// PublishAdmin delivers the message to every admin observer.
func (r *Registry) PublishAdmin(msg []byte) int {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.admins))
	for _, conn := range r.admins {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	return r.deliver(conns, msg)
}

// Disconnect removes the connection from every topic and channel it belongs
// to. It returns the driver ids for which this connection was the sole
// ingress, so the caller can release per-driver caches.
func (r *Registry) Disconnect(conn Conn) []domain.DriverID {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	for id := range r.topicsByConn[connID] {
		r.removeSubscriptionLocked(connID, id)
	}
	delete(r.topicsByConn, connID)

	var orphaned []domain.DriverID
	for id := range r.ingressByConn[connID] {
		set := r.ingress[id]
		delete(set, connID)
		if len(set) == 0 {
			delete(r.ingress, id)
			orphaned = append(orphaned, id)
		}
	}
	delete(r.ingressByConn, connID)

	delete(r.admins, connID)

	topicSubscribers.Set(r.countSubscribersLocked())
	adminObservers.Set(float64(len(r.admins)))
	connectedDrivers.Set(float64(len(r.ingress)))
	return orphaned
}

func (r *Registry) deliver(conns []Conn, msg []byte) int {
	delivered := 0
	for _, conn := range conns {
		if conn.Enqueue(msg) {
			delivered++
			continue
		}
		droppedDeliveries.Inc()
		r.logger.Debug("dropped delivery to slow or closed connection",
			zap.String("conn_id", conn.ID().String()))
	}
	return delivered
}

func (r *Registry) removeSubscriptionLocked(connID uuid.UUID, id domain.DriverID) {
	set := r.subscribers[id]
	if set == nil {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.subscribers, id)
	}
	if topics := r.topicsByConn[connID]; topics != nil {
		delete(topics, id)
	}
}

func (r *Registry) countSubscribersLocked() float64 {
	total := 0
	for _, set := range r.subscribers {
		total += len(set)
	}
	return float64(total)
}

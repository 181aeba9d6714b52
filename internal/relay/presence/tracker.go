package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/registry"
)

// Config tunes the presence sweep.
type Config struct {
	TTL      time.Duration
	Interval time.Duration
}

// Tracker watches for drivers that stop reporting and tells the admin
// channel when one goes offline. A driver is online from its first relayed
// sample until its ingress disconnects or the TTL elapses without a sample.
type Tracker struct {
	mu       sync.Mutex
	lastSeen map[domain.DriverID]time.Time

	registry *registry.Registry
	clock    domain.Clock
	logger   *zap.Logger
	cfg      Config
}

type offlineData struct {
	DriverID domain.DriverID `json:"driverId"`
}

// New constructs a tracker.
func New(reg *registry.Registry, clock domain.Clock, logger *zap.Logger, cfg Config) *Tracker {
	if cfg.TTL <= 0 {
		cfg.TTL = 90 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		lastSeen: make(map[domain.DriverID]time.Time),
		registry: reg,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
	}
}

// Touch records that the driver just reported in.
func (t *Tracker) Touch(id domain.DriverID) {
	t.mu.Lock()
	t.lastSeen[id] = t.clock.Now()
	onlineDrivers.Set(float64(len(t.lastSeen)))
	t.mu.Unlock()
}

// Remove marks the driver offline immediately, typically on disconnect.
func (t *Tracker) Remove(id domain.DriverID) {
	t.mu.Lock()
	_, known := t.lastSeen[id]
	delete(t.lastSeen, id)
	onlineDrivers.Set(float64(len(t.lastSeen)))
	t.mu.Unlock()
	if known {
		t.announceOffline(id)
	}
}

// Run sweeps for expired drivers until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Sweep expires every driver whose last sample is older than the TTL.
func (t *Tracker) Sweep() {
	now := t.clock.Now()
	var expired []domain.DriverID

	t.mu.Lock()
	for id, seen := range t.lastSeen {
		if now.Sub(seen) > t.cfg.TTL {
			expired = append(expired, id)
			delete(t.lastSeen, id)
		}
	}
	onlineDrivers.Set(float64(len(t.lastSeen)))
	t.mu.Unlock()

	for _, id := range expired {
		t.announceOffline(id)
	}
}

func (t *Tracker) announceOffline(id domain.DriverID) {
	msg, err := json.Marshal(domain.Event{Event: domain.EventDriverOffline, Data: offlineData{DriverID: id}})
	if err != nil {
		return
	}
	t.registry.PublishAdmin(msg)
	t.logger.Info("driver offline", zap.Int64("driver_id", int64(id)))
}

package geocode

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/fleetrelay/internal/relay/domain"
)

// UnknownLocation is returned when the geocoder fails and no earlier result
// exists for the driver.
const UnknownLocation = "Unknown Location"

// Resolver resolves place names on the hot path and never fails outward.
// A geocoder error degrades to the driver's last successful result, then to
// the UnknownLocation sentinel. Each new sample is itself a fresh attempt,
// so there is no retry loop here.
type Resolver struct {
	mu       sync.RWMutex
	geocoder domain.Geocoder
	logger   *zap.Logger
	lastGood map[domain.DriverID]string
}

// NewResolver constructs a resolver over the given geocoder.
func NewResolver(geocoder domain.Geocoder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		geocoder: geocoder,
		logger:   logger,
		lastGood: make(map[domain.DriverID]string),
	}
}

// Resolve returns a usable place name for the coordinates.
func (r *Resolver) Resolve(ctx context.Context, id domain.DriverID, lat, lon float64) string {
	start := time.Now()
	name, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
	geocodeDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		geocodeTotal.WithLabelValues("ok").Inc()
		r.mu.Lock()
		r.lastGood[id] = name
		r.mu.Unlock()
		return name
	}

	r.logger.Warn("reverse geocode failed",
		zap.Int64("driver_id", int64(id)),
		zap.Error(err))

	r.mu.RLock()
	prev, ok := r.lastGood[id]
	r.mu.RUnlock()
	if ok {
		geocodeTotal.WithLabelValues("fallback").Inc()
		return prev
	}
	geocodeTotal.WithLabelValues("sentinel").Inc()
	return UnknownLocation
}

// Forget clears the driver's place-name history when their session ends.
func (r *Resolver) Forget(id domain.DriverID) {
	r.mu.Lock()
	delete(r.lastGood, id)
	r.mu.Unlock()
}

package engine

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/fleetrelay/internal/relay/directory"
	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/geocode"
	"github.com/example/fleetrelay/internal/relay/registry"
)

// EventSink receives every broadcast payload for out-of-process consumers.
// Delivery is best effort; a sink error never blocks the relay.
type EventSink interface {
	Publish(ctx context.Context, payload domain.OutboundPayload) error
}

// LocationTracker records the last known position per driver.
type LocationTracker interface {
	Update(ctx context.Context, id domain.DriverID, lat, lon float64) error
}

// Presence is notified whenever a driver reports in.
type Presence interface {
	Touch(id domain.DriverID)
	Remove(id domain.DriverID)
}

// Options carries the optional side channels.
type Options struct {
	Sink     EventSink
	Tracker  LocationTracker
	Presence Presence
}

// Engine orchestrates the per-sample relay pipeline: validate, resolve the
// driver profile, resolve a place name, build one payload, and fan it out to
// the driver's topic and the admin-observer channel.
type Engine struct {
	directory *directory.Cache
	places    *geocode.Resolver
	registry  *registry.Registry
	opts      Options
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New constructs an engine with the required collaborators.
func New(dir *directory.Cache, places *geocode.Resolver, reg *registry.Registry, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		directory: dir,
		places:    places,
		registry:  reg,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("relay.engine"),
	}
}

// NewSession starts tracking a driver-ingress connection.
func (e *Engine) NewSession(conn registry.Conn) *Session {
	return &Session{conn: conn, state: StateConnected}
}

// Identify binds the session to a driver identity and joins the driver's own
// topic for symmetry and diagnostics.
func (e *Engine) Identify(s *Session, id domain.DriverID) error {
	if !id.Valid() {
		samplesTotal.WithLabelValues("invalid").Inc()
		e.logger.Warn("rejected driver identification",
			zap.Int64("driver_id", int64(id)))
		return domain.ErrInvalidSample
	}
	s.identify(id)
	e.registry.JoinAsDriver(s.conn, id)
	e.logger.Info("driver identified",
		zap.Int64("driver_id", int64(id)),
		zap.String("conn_id", s.conn.ID().String()))
	return nil
}

// HandleSample runs the per-sample pipeline. Validation and directory
// failures drop the sample; the connection keeps accepting future samples.
func (e *Engine) HandleSample(ctx context.Context, s *Session, sample domain.LocationSample) error {
	ctx, span := e.tracer.Start(ctx, "relay.sample")
	defer span.End()

	if s.State() == StateConnected || s.State() == StateDisconnected {
		samplesTotal.WithLabelValues("unidentified").Inc()
		e.logger.Warn("location sample before identification",
			zap.String("conn_id", s.conn.ID().String()))
		return domain.ErrNotIdentified
	}

	if !sample.DriverID.Valid() || sample.Latitude == nil || sample.Longitude == nil {
		samplesTotal.WithLabelValues("invalid").Inc()
		e.logger.Warn("invalid location sample",
			zap.Int64("driver_id", int64(sample.DriverID)))
		return domain.ErrInvalidSample
	}

	profile, err := e.directory.Resolve(ctx, sample.DriverID)
	if err != nil {
		samplesTotal.WithLabelValues("unknown_driver").Inc()
		e.logger.Warn("driver lookup failed",
			zap.Int64("driver_id", int64(sample.DriverID)),
			zap.Error(err))
		return err
	}

	lat, lon := *sample.Latitude, *sample.Longitude
	place := e.places.Resolve(ctx, sample.DriverID, lat, lon)

	payload := domain.OutboundPayload{
		DriverInfo: domain.DriverInfo{
			ID:        profile.ID,
			Name:      profile.Name,
			Phone:     profile.Phone,
			BusNumber: busNumber(profile),
		},
		Latitude:  lat,
		Longitude: lon,
		Speed:     sample.Speed,
		PlaceName: place,
	}

	msg, err := json.Marshal(domain.Event{Event: domain.EventLocationUpdate, Data: payload})
	if err != nil {
		samplesTotal.WithLabelValues("invalid").Inc()
		return err
	}

	delivered := e.registry.Publish(sample.DriverID, msg)
	e.registry.PublishAdmin(msg)
	s.markStreaming()
	samplesTotal.WithLabelValues("ok").Inc()

	if e.opts.Presence != nil {
		e.opts.Presence.Touch(sample.DriverID)
	}
	if e.opts.Sink != nil {
		if err := e.opts.Sink.Publish(ctx, payload); err != nil {
			e.logger.Warn("event sink publish failed", zap.Error(err))
		}
	}
	if e.opts.Tracker != nil {
		if err := e.opts.Tracker.Update(ctx, sample.DriverID, lat, lon); err != nil {
			e.logger.Warn("location tracker update failed", zap.Error(err))
		}
	}

	e.logger.Debug("location relayed",
		zap.Int64("driver_id", int64(sample.DriverID)),
		zap.Int("subscribers", delivered))
	return nil
}

// Subscribe adds a user connection to the driver's topic.
func (e *Engine) Subscribe(conn registry.Conn, id domain.DriverID) error {
	if !id.Valid() {
		return domain.ErrInvalidSample
	}
	e.registry.Subscribe(conn, id)
	e.logger.Info("subscribed to driver",
		zap.Int64("driver_id", int64(id)),
		zap.String("conn_id", conn.ID().String()))
	return nil
}

// Unsubscribe removes a user connection from the driver's topic.
func (e *Engine) Unsubscribe(conn registry.Conn, id domain.DriverID) error {
	if !id.Valid() {
		return domain.ErrInvalidSample
	}
	e.registry.Unsubscribe(conn, id)
	return nil
}

// JoinAdmin adds a connection to the admin-observer channel.
func (e *Engine) JoinAdmin(conn registry.Conn) {
	e.registry.JoinAdmin(conn)
}

// Disconnect removes a connection from every topic it belongs to and, where
// the connection was a driver's sole ingress, releases that driver's cached
// profile and place-name history.
func (e *Engine) Disconnect(conn registry.Conn) {
	orphaned := e.registry.Disconnect(conn)
	for _, id := range orphaned {
		e.directory.Invalidate(id)
		e.places.Forget(id)
		if e.opts.Presence != nil {
			e.opts.Presence.Remove(id)
		}
		e.logger.Info("driver session released",
			zap.Int64("driver_id", int64(id)))
	}
}

// CloseSession terminates a driver session and cleans up its resources.
func (e *Engine) CloseSession(s *Session) {
	s.close()
	e.Disconnect(s.conn)
}

func busNumber(profile domain.DriverProfile) string {
	if profile.Vehicle == "" {
		return "N/A"
	}
	return profile.Vehicle
}

package stream

import (
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/engine"
)

// Server feeds streamed driver locations into the relay engine. The first
// message on a stream identifies the driver; every message then runs through
// the same pipeline as the websocket ingress.
type Server struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewServer constructs the ingress server.
func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: eng, logger: logger}
}

// PushLocations ingests one driver's location stream.
func (s *Server) PushLocations(stream Relay_PushLocationsServer) error {
	conn := newStreamConn()
	session := s.engine.NewSession(conn)
	defer s.engine.CloseSession(session)

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&Ack{})
		}
		if err != nil {
			return err
		}

		if session.State() == engine.StateConnected && msg.DriverId > 0 {
			if err := s.engine.Identify(session, domain.DriverID(msg.DriverId)); err != nil {
				continue
			}
		}

		lat, lon := msg.Lat, msg.Lon
		_ = s.engine.HandleSample(stream.Context(), session, domain.LocationSample{
			DriverID:  domain.DriverID(msg.DriverId),
			Latitude:  &lat,
			Longitude: &lon,
			Speed:     msg.Speed,
		})
	}
}

// streamConn satisfies registry.Conn for a publish-only ingress stream.
type streamConn struct {
	id uuid.UUID
}

func newStreamConn() *streamConn {
	return &streamConn{id: uuid.New()}
}

func (c *streamConn) ID() uuid.UUID { return c.id }

// Enqueue discards broadcasts; a driver ingress never consumes them.
func (c *streamConn) Enqueue([]byte) bool { return true }

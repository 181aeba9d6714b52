package stream

import "google.golang.org/grpc"

// DriverLocation is one streamed location report from a native device SDK.
type DriverLocation struct {
	DriverId int64
	Lat      float64
	Lon      float64
	Speed    float64
}

// Ack is returned when the stream closes.
type Ack struct{}

// RelayServer defines the gRPC contract for the driver ingress stream.
type RelayServer interface {
	PushLocations(Relay_PushLocationsServer) error
}

// RegisterRelayServer registers the service implementation.
func RegisterRelayServer(s *grpc.Server, srv RelayServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "fleetrelay.Relay",
		HandlerType: (*RelayServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "PushLocations",
			Handler:       _Relay_PushLocations_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// Relay_PushLocationsServer defines the ingress stream interface.
type Relay_PushLocationsServer interface {
	grpc.ServerStream
	SendAndClose(*Ack) error
	Recv() (*DriverLocation, error)
}

func _Relay_PushLocations_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(RelayServer).PushLocations(&relayPushServer{ServerStream: stream})
}

type relayPushServer struct {
	grpc.ServerStream
}

func (s *relayPushServer) SendAndClose(*Ack) error { return nil }

func (s *relayPushServer) Recv() (*DriverLocation, error) {
	msg := new(DriverLocation)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

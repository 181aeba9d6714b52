package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/example/fleetrelay/internal/relay/domain"
)

type stubConn struct {
	msgs []*nats.Msg
	err  error
}

func (s *stubConn) PublishMsg(msg *nats.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestPublishSendsPayloadWithHeaders(t *testing.T) {
	conn := &stubConn{}
	p := &Publisher{conn: conn, subject: "fleet.locations"}

	payload := domain.OutboundPayload{
		DriverInfo: domain.DriverInfo{ID: 42, Name: "A", Phone: "555", BusNumber: "BUS-7"},
		Latitude:   12.9,
		Longitude:  77.6,
		Speed:      30,
		PlaceName:  "MG Road",
	}
	require.NoError(t, p.Publish(context.Background(), payload))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	require.Equal(t, "fleet.locations", msg.Subject)
	require.Equal(t, "42", msg.Header.Get("x-driver-id"))

	var decoded domain.OutboundPayload
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.Equal(t, payload, decoded)
}

func TestNilConnectionIsNoop(t *testing.T) {
	p := NewPublisher(nil, "")
	require.NoError(t, p.Publish(context.Background(), domain.OutboundPayload{}))
}

func TestDefaultSubject(t *testing.T) {
	conn := &stubConn{}
	p := &Publisher{conn: conn, subject: defaultSubject}
	require.NoError(t, p.Publish(context.Background(), domain.OutboundPayload{}))
	require.Equal(t, "fleet.locations", conn.msgs[0].Subject)
}

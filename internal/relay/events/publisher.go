package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/fleetrelay/internal/relay/domain"
)

const defaultSubject = "fleet.locations"

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher mirrors every broadcast payload onto a NATS subject where
// out-of-process consumers listen: the location-history logger, analytics,
// and anything else that wants the live stream. Delivery is at most once;
// there is no durable queue and no retry.
type Publisher struct {
	conn    natsConn
	subject string
}

// NewPublisher builds a publisher. A nil connection yields a no-op publisher
// so callers do not have to branch on configuration.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = defaultSubject
	}
	if conn == nil {
		return &Publisher{subject: subject}
	}
	return &Publisher{conn: conn, subject: subject}
}

// Publish sends the payload to the configured subject.
func (p *Publisher) Publish(ctx context.Context, payload domain.OutboundPayload) error {
	if p == nil || p.conn == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return p.conn.PublishMsg(&nats.Msg{Subject: p.subject, Data: data, Header: map[string][]string{
		"x-trace-id":  {traceIDFromContext(ctx)},
		"x-driver-id": {strconv.FormatInt(int64(payload.DriverInfo.ID), 10)},
	}})
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

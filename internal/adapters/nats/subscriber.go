package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS and makes sure the report stream exists.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url, "rescuelink-tracker")
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeLocationUpdates consumes device position reports. The ambulance id
// is taken from the subject when the payload omits it. Malformed reports are
// terminated; transient handler errors are redelivered up to three times.
func (s *Subscriber) SubscribeLocationUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.LocationUpdate) error) error {
	sub, err := s.js.QueueSubscribe(SubjectLocationReportAll, "tracker", func(msg *nats.Msg) {
		update, err := decodeLocationReport(msg.Subject, msg.Data)
		if err != nil {
			slog.Warn("drop malformed location report", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, update); err != nil {
			slog.Warn("location report failed", "ambulance_id", update.AmbulanceID, "error", err)
			if retryable(err) {
				_ = msg.Nak()
			} else {
				_ = msg.Term()
			}
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("location-tracker"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func decodeLocationReport(subject string, data []byte) (*domain.LocationUpdate, error) {
	var update domain.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, err
	}
	if update.AmbulanceID == "" {
		update.AmbulanceID = strings.TrimPrefix(subject, "emergency.ambulance.report.")
	}
	if update.AmbulanceID == "" || update.AmbulanceID == subject {
		return nil, fmt.Errorf("no ambulance id in %q", subject)
	}
	return &update, nil
}

// retryable reports whether redelivering the report could succeed. Unknown
// ambulances and bad coordinates never will.
func retryable(err error) bool {
	var verr *domain.ValidationError
	return !errors.Is(err, domain.ErrNotFound) && !errors.As(err, &verr)
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

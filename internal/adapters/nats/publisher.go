package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// Subjects. Device reports are a work queue consumed by the tracker; applied
// locations and dispatch events fan out to dashboards.
const (
	SubjectDispatchAll       = "emergency.dispatch.>"
	SubjectLocationAll       = "emergency.ambulance.location.>"
	SubjectLocationReportAll = "emergency.ambulance.report.>"
)

// CandidateSubject carries one resolved candidate of a dispatch.
func CandidateSubject(dispatchID string) string {
	return "emergency.dispatch." + dispatchID + ".candidate"
}

// CompletedSubject carries the final result of a dispatch.
func CompletedSubject(dispatchID string) string {
	return "emergency.dispatch." + dispatchID + ".completed"
}

// LocationSubject carries an applied location update.
func LocationSubject(ambulanceID string) string {
	return "emergency.ambulance.location." + ambulanceID
}

// LocationReportSubject is where devices publish raw position reports.
func LocationReportSubject(ambulanceID string) string {
	return "emergency.ambulance.report." + ambulanceID
}

// candidateEvent is the payload published per resolved candidate.
type candidateEvent struct {
	DispatchID string                  `json:"dispatchId"`
	Outcome    domain.CandidateOutcome `json:"outcome"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url, "rescuelink-publisher")
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

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "EMERGENCY_DISPATCHES",
			Subjects:  []string{SubjectDispatchAll},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "AMBULANCE_REPORTS",
			Subjects:  []string{SubjectLocationReportAll},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    10 * time.Minute,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; update it instead.
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

func (p *Publisher) PublishCandidateOutcome(ctx context.Context, dispatchID string, outcome domain.CandidateOutcome) error {
	data, err := json.Marshal(candidateEvent{DispatchID: dispatchID, Outcome: outcome})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(CandidateSubject(dispatchID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishDispatchCompleted(ctx context.Context, result *domain.DispatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(CompletedSubject(result.ID), data,
		nats.Context(ctx),
		nats.MsgId(result.ID),
	)
	return err
}

// PublishLocationUpdate fans an applied location out to live subscribers.
// Locations go over core NATS; only the latest one matters.
func (p *Publisher) PublishLocationUpdate(ctx context.Context, update *domain.LocationUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.conn.Publish(LocationSubject(update.AmbulanceID), data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return connect(url, "rescuelink-relay")
}

func connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/core/ports"
	"github.com/samirrijal/rescuelink/internal/pkg/metrics"
	"github.com/samirrijal/rescuelink/internal/pkg/telemetry"
	"github.com/samirrijal/rescuelink/internal/pkg/validator"
)

// CandidateLocator produces the ordered candidate list for a dispatch.
type CandidateLocator interface {
	Locate(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.Candidate, error)
}

// DispatchOptions tunes the dispatcher. Zero values fall back to defaults.
type DispatchOptions struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	MaxConcurrent   int
	NotifyTimeout   time.Duration
	AuditTimeout    time.Duration
}

func (o DispatchOptions) withDefaults() DispatchOptions {
	if o.DefaultRadiusKm <= 0 {
		o.DefaultRadiusKm = 5
	}
	if o.MaxRadiusKm < o.DefaultRadiusKm {
		o.MaxRadiusKm = math.Max(50, o.DefaultRadiusKm)
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 10
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 8 * time.Second
	}
	if o.AuditTimeout <= 0 {
		o.AuditTimeout = 5 * time.Second
	}
	return o
}

// DispatchService notifies located ambulances about an emergency and
// aggregates the per-candidate outcomes.
type DispatchService struct {
	locator    CandidateLocator
	gateway    ports.NotificationGateway
	dispatches ports.DispatchRepository
	publisher  ports.EventPublisher
	opts       DispatchOptions
	newID      func() string
	now        func() time.Time
}

// NewDispatchService creates a new DispatchService. dispatches and publisher may be nil.
func NewDispatchService(
	locator CandidateLocator,
	gateway ports.NotificationGateway,
	dispatches ports.DispatchRepository,
	publisher ports.EventPublisher,
	opts DispatchOptions,
) *DispatchService {
	return &DispatchService{
		locator:    locator,
		gateway:    gateway,
		dispatches: dispatches,
		publisher:  publisher,
		opts:       opts.withDefaults(),
		newID:      uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch locates ambulances near the requester and notifies each of them.
//
// Without a callback phone the call is a dry run: candidates are located and
// returned but the gateway is never invoked. A failed or timed out
// notification is recorded on its candidate and never fails the dispatch;
// only invalid input or a registry failure returns an error.
func (s *DispatchService) Dispatch(ctx context.Context, req domain.EmergencyRequest) (*domain.DispatchResult, error) {
	start := time.Now()

	center, radiusKm, callback, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "DispatchService.Dispatch", trace.WithAttributes(
		attribute.Float64("dispatch.latitude", center.Lat),
		attribute.Float64("dispatch.longitude", center.Lon),
		attribute.Float64("dispatch.radius_km", radiusKm),
		attribute.Bool("dispatch.dry_run", callback == ""),
	))
	defer span.End()

	candidates, err := s.locator.Locate(ctx, center, radiusKm)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "locate failed")
		var dsErr *domain.DatastoreError
		if errors.As(err, &dsErr) {
			return nil, err
		}
		return nil, &domain.DatastoreError{Op: "locate candidates", Err: err}
	}
	metrics.CandidatesFound.Observe(float64(len(candidates)))

	result := &domain.DispatchResult{
		ID:                s.newID(),
		DryRun:            callback == "",
		RequesterLocation: center,
		RadiusKm:          radiusKm,
		Candidates:        make([]domain.CandidateOutcome, len(candidates)),
		CreatedAt:         s.now(),
	}
	span.SetAttributes(
		attribute.String("dispatch.id", result.ID),
		attribute.Int("dispatch.candidates", len(candidates)),
	)

	log := slog.With("dispatch_id", result.ID)

	switch {
	case len(candidates) == 0:
		result.State = domain.StateNoCandidates
		log.Info("no ambulance in range", "radius_km", radiusKm)

	case result.DryRun:
		for i, c := range candidates {
			result.Candidates[i] = outcomeFor(c, domain.StatusSkipped, domain.ReasonDryRun)
		}
		result.State = domain.StateCompleted
		log.Info("dry run dispatch", "candidates", len(candidates))

	default:
		s.notifyAll(ctx, result, candidates, callback)
		result.State = domain.StateCompleted
	}

	for _, o := range result.Candidates {
		result.Summary.Add(o.NotificationStatus)
		metrics.NotificationsTotal.WithLabelValues(string(o.NotificationStatus)).Inc()
	}

	s.finish(ctx, result)

	metrics.DispatchesTotal.WithLabelValues(string(result.State), strconv.FormatBool(result.DryRun)).Inc()
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	log.Info("dispatch finished",
		"state", result.State,
		"notified", result.Summary.Notified,
		"failed", result.Summary.Failed,
		"skipped", result.Summary.Skipped,
		"duration", time.Since(start),
	)

	return result, nil
}

// GetDispatch returns a previously recorded dispatch.
func (s *DispatchService) GetDispatch(ctx context.Context, id string) (*domain.DispatchResult, error) {
	if s.dispatches == nil {
		return nil, domain.ErrNotFound
	}
	res, err := s.dispatches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.DatastoreError{Op: "get dispatch", Err: err}
	}
	return res, nil
}

// ResolveRadius applies the configured default to a zero radius and rejects
// negative, NaN or over-limit values.
func (s *DispatchService) ResolveRadius(radiusKm float64) (float64, error) {
	switch {
	case math.IsNaN(radiusKm) || radiusKm < 0:
		return 0, domain.NewValidationError("radiusKm", "must be positive")
	case radiusKm == 0:
		return s.opts.DefaultRadiusKm, nil
	case radiusKm > s.opts.MaxRadiusKm:
		return 0, domain.NewValidationError("radiusKm", fmt.Sprintf("must not exceed %g", s.opts.MaxRadiusKm))
	}
	return radiusKm, nil
}

func (s *DispatchService) validate(req domain.EmergencyRequest) (domain.GeoPoint, float64, string, error) {
	if req.RequesterLocation == nil {
		return domain.GeoPoint{}, 0, "", domain.NewValidationError("requesterLocation", "is required")
	}
	center := *req.RequesterLocation
	if err := center.Validate(); err != nil {
		return domain.GeoPoint{}, 0, "", err
	}

	radiusKm, err := s.ResolveRadius(req.RadiusKm)
	if err != nil {
		return domain.GeoPoint{}, 0, "", err
	}

	callback := strings.TrimSpace(req.CallbackPhone)
	if callback != "" && !validator.IsPhone(callback) {
		return domain.GeoPoint{}, 0, "", domain.NewValidationError("callbackPhone", "must be a valid phone number")
	}

	return center, radiusKm, callback, nil
}

// notifyAll fans out to every candidate, at most MaxConcurrent at a time.
// Outcomes keep the locator's order.
func (s *DispatchService) notifyAll(ctx context.Context, result *domain.DispatchResult, candidates []domain.Candidate, callback string) {
	// A caller hanging up must not cancel calls already being placed.
	notifyCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)

	for i, c := range candidates {
		g.Go(func() error {
			outcome := s.notifyOne(notifyCtx, result, c, callback)
			result.Candidates[i] = outcome
			s.publishOutcome(notifyCtx, result.ID, outcome)
			return nil
		})
	}
	_ = g.Wait()
}

type notifyResult struct {
	receipt domain.NotificationReceipt
	err     error
}

func (s *DispatchService) notifyOne(ctx context.Context, result *domain.DispatchResult, c domain.Candidate, callback string) domain.CandidateOutcome {
	contact := strings.TrimSpace(c.Ambulance.DriverContact)
	if contact == "" {
		return outcomeFor(c, domain.StatusSkipped, domain.ReasonMissingContact)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "DispatchService.notify", trace.WithAttributes(
		attribute.String("ambulance.id", c.Ambulance.ID),
		attribute.Float64("ambulance.distance_km", c.DistanceKm),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	n := domain.Notification{
		DispatchID:        result.ID,
		AmbulanceID:       c.Ambulance.ID,
		Contact:           contact,
		Message:           BuildAlertMessage(result.RequesterLocation, c.DistanceKm, callback),
		CallbackPhone:     callback,
		RequesterLocation: result.RequesterLocation,
	}

	start := time.Now()
	done := make(chan notifyResult, 1)
	go func() {
		receipt, err := s.gateway.Notify(ctx, n)
		done <- notifyResult{receipt: receipt, err: err}
	}()

	var res notifyResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())

	if res.err != nil {
		gwErr := &domain.GatewayError{AmbulanceID: c.Ambulance.ID, Err: res.err}
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, "notify failed")

		reason := domain.ReasonGatewayError
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = domain.ReasonTimeout
		}
		slog.Warn("notify candidate failed",
			"dispatch_id", result.ID,
			"ambulance_id", c.Ambulance.ID,
			"reason", reason,
			"error", gwErr,
		)
		return outcomeFor(c, domain.StatusFailed, reason)
	}

	out := outcomeFor(c, domain.StatusNotified, "")
	out.ProviderID = res.receipt.ProviderID
	return out
}

// finish publishes the completed dispatch and records the audit entry.
// Both are best effort.
func (s *DispatchService) finish(ctx context.Context, result *domain.DispatchResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AuditTimeout)
	defer cancel()

	if s.dispatches != nil {
		if err := s.dispatches.Save(ctx, result); err != nil {
			slog.Error("save dispatch audit", "dispatch_id", result.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishDispatchCompleted(ctx, result); err != nil {
			slog.Warn("publish dispatch completed", "dispatch_id", result.ID, "error", err)
		}
	}
}

func (s *DispatchService) publishOutcome(ctx context.Context, dispatchID string, outcome domain.CandidateOutcome) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCandidateOutcome(ctx, dispatchID, outcome); err != nil {
		slog.Warn("publish candidate outcome", "dispatch_id", dispatchID, "error", err)
	}
}

func outcomeFor(c domain.Candidate, status domain.NotificationStatus, reason string) domain.CandidateOutcome {
	return domain.CandidateOutcome{
		AmbulanceID:        c.Ambulance.ID,
		Name:               c.Ambulance.Name,
		VehicleNumber:      c.Ambulance.VehicleNumber,
		DistanceKm:         math.Round(c.DistanceKm*1000) / 1000,
		NotificationStatus: status,
		Reason:             reason,
	}
}

// BuildAlertMessage renders the text read or sent to a driver.
func BuildAlertMessage(loc domain.GeoPoint, distanceKm float64, callback string) string {
	return fmt.Sprintf(
		"EMERGENCY: patient needs an ambulance %.1f km from you. Location: https://maps.google.com/?q=%.6f,%.6f. Call back: %s",
		distanceKm, loc.Lat, loc.Lon, callback,
	)
}

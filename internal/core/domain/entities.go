package domain

import (
	"time"
)

// Ambulance is a registered emergency vehicle with its driver and last known location.
type Ambulance struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	VehicleNumber string    `json:"vehicleNumber"`
	DriverName    string    `json:"driverName,omitempty"`
	DriverContact string    `json:"driverContact"`
	VehicleType   string    `json:"vehicleType,omitempty"`
	Location      GeoPoint  `json:"location"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RegisterAmbulanceRequest is the registration payload submitted by an ambulance device.
// Coordinates are pointers so that a missing value can be told apart from 0.
type RegisterAmbulanceRequest struct {
	Name          string   `json:"name" validate:"required,max=120"`
	VehicleNumber string   `json:"vehicleNumber" validate:"required,max=32"`
	DriverName    string   `json:"driverName" validate:"max=120"`
	DriverContact string   `json:"driverContact" validate:"required,phone"`
	VehicleType   string   `json:"vehicleType" validate:"max=32"`
	Latitude      *float64 `json:"latitude" validate:"required,lat"`
	Longitude     *float64 `json:"longitude" validate:"required,lng"`
}

// LocationUpdate is a periodic position report for an already registered ambulance.
type LocationUpdate struct {
	AmbulanceID string    `json:"ambulanceId"`
	Location    GeoPoint  `json:"location"`
	ReportedAt  time.Time `json:"reportedAt"`
}

// Candidate is an ambulance found within range of an emergency request.
type Candidate struct {
	Ambulance  Ambulance `json:"ambulance"`
	DistanceKm float64   `json:"distanceKm"`
}

// EmergencyRequest is an incoming emergency call. It is never persisted.
type EmergencyRequest struct {
	RequesterLocation *GeoPoint `json:"requesterLocation"`
	CallbackPhone     string    `json:"callbackPhone,omitempty"`
	RadiusKm          float64   `json:"radiusKm,omitempty"`
}

// NotificationStatus is the per-candidate outcome of a dispatch.
type NotificationStatus string

const (
	StatusNotified NotificationStatus = "notified"
	StatusFailed   NotificationStatus = "failed"
	StatusSkipped  NotificationStatus = "skipped"
)

// Reasons attached to failed or skipped candidates.
const (
	ReasonDryRun         = "dry_run"
	ReasonMissingContact = "missing_driver_contact"
	ReasonTimeout        = "timeout"
	ReasonGatewayError   = "gateway_error"
)

// DispatchState is the terminal state of a dispatch.
type DispatchState string

const (
	StateNoCandidates DispatchState = "no_candidates"
	StateCompleted    DispatchState = "completed"
)

// CandidateOutcome records what happened when a single candidate was notified.
type CandidateOutcome struct {
	AmbulanceID        string             `json:"ambulanceId"`
	Name               string             `json:"name,omitempty"`
	VehicleNumber      string             `json:"vehicleNumber,omitempty"`
	DistanceKm         float64            `json:"distanceKm"`
	NotificationStatus NotificationStatus `json:"notificationStatus"`
	Reason             string             `json:"reason,omitempty"`
	ProviderID         string             `json:"providerId,omitempty"`
}

// DispatchSummary aggregates candidate outcomes.
type DispatchSummary struct {
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Add counts one outcome.
func (s *DispatchSummary) Add(status NotificationStatus) {
	switch status {
	case StatusNotified:
		s.Notified++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// DispatchResult is produced once per emergency request.
type DispatchResult struct {
	ID                string             `json:"id"`
	State             DispatchState      `json:"state"`
	DryRun            bool               `json:"dryRun"`
	RequesterLocation GeoPoint           `json:"requesterLocation"`
	RadiusKm          float64            `json:"radiusKm"`
	Candidates        []CandidateOutcome `json:"candidates"`
	Summary           DispatchSummary    `json:"summary"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// Notification is what the dispatcher hands to a notification gateway for one candidate.
type Notification struct {
	DispatchID        string   `json:"dispatchId"`
	AmbulanceID       string   `json:"ambulanceId"`
	Contact           string   `json:"contact"`
	Message           string   `json:"message"`
	CallbackPhone     string   `json:"callbackPhone"`
	RequesterLocation GeoPoint `json:"requesterLocation"`
}

// NotificationReceipt is returned by a gateway once the provider accepted a notification.
type NotificationReceipt struct {
	Status     string `json:"status"`
	ProviderID string `json:"providerId"`
	Channel    string `json:"channel,omitempty"`
}

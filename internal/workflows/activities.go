package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// Activity names, referenced by string from the workflow.
const (
	ActivityPlaceCall = "PlaceCall"
	ActivitySendSMS   = "SendSMS"
)

// Provider is the telephony API the activities drive.
type Provider interface {
	PlaceCall(ctx context.Context, to, message string) (string, error)
	SendSMS(ctx context.Context, to, message string) (string, error)
}

// permanent is implemented by provider errors that retrying cannot fix.
type permanent interface {
	Permanent() bool
}

// NotifyActivities holds the activity implementations for NotifyDriverWorkflow.
type NotifyActivities struct {
	Provider Provider
}

// PlaceCall rings the driver and reads the alert.
func (a *NotifyActivities) PlaceCall(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error) {
	activity.GetLogger(ctx).Info("placing call", "dispatch_id", n.DispatchID, "ambulance_id", n.AmbulanceID)
	sid, err := a.Provider.PlaceCall(ctx, n.Contact, n.Message)
	if err != nil {
		return domain.NotificationReceipt{}, classify(err)
	}
	return domain.NotificationReceipt{Status: "queued", ProviderID: sid, Channel: "voice"}, nil
}

// SendSMS texts the alert to the driver.
func (a *NotifyActivities) SendSMS(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error) {
	activity.GetLogger(ctx).Info("sending sms", "dispatch_id", n.DispatchID, "ambulance_id", n.AmbulanceID)
	sid, err := a.Provider.SendSMS(ctx, n.Contact, n.Message)
	if err != nil {
		return domain.NotificationReceipt{}, classify(err)
	}
	return domain.NotificationReceipt{Status: "queued", ProviderID: sid, Channel: "sms"}, nil
}

// classify stops Temporal from retrying requests the provider rejected outright.
func classify(err error) error {
	var p permanent
	if errors.As(err, &p) && p.Permanent() {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePermanent, err)
	}
	return err
}

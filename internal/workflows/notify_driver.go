package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// ErrTypePermanent marks provider rejections that must not be retried.
const ErrTypePermanent = "PermanentProviderError"

// NotifyDriverInput is the input for the notify-driver workflow.
type NotifyDriverInput struct {
	Notification domain.Notification
}

// NotifyDriverWorkflow calls the driver and falls back to SMS when the call
// cannot be placed. Each step is retried by Temporal on transient errors.
func NotifyDriverWorkflow(ctx workflow.Context, input NotifyDriverInput) (domain.NotificationReceipt, error) {
	logger := workflow.GetLogger(ctx)
	n := input.Notification
	logger.Info("notify driver", "dispatch_id", n.DispatchID, "ambulance_id", n.AmbulanceID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        500 * time.Millisecond,
			BackoffCoefficient:     2,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypePermanent},
		},
	})

	var receipt domain.NotificationReceipt
	callErr := workflow.ExecuteActivity(ctx, ActivityPlaceCall, n).Get(ctx, &receipt)
	if callErr == nil {
		return receipt, nil
	}
	logger.Warn("call failed, falling back to sms", "error", callErr)

	if err := workflow.ExecuteActivity(ctx, ActivitySendSMS, n).Get(ctx, &receipt); err != nil {
		logger.Error("sms failed", "error", err)
		return domain.NotificationReceipt{}, errors.Join(callErr, err)
	}
	return receipt, nil
}

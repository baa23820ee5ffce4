// Package temporaladapter hands driver notifications to Temporal so that
// retries and the SMS fallback survive process restarts.
package temporaladapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/workflows"
)

// Gateway implements ports.NotificationGateway by running NotifyDriverWorkflow.
type Gateway struct {
	client    client.Client
	taskQueue string
}

// NewGateway creates a Gateway that starts workflows on taskQueue.
func NewGateway(c client.Client, taskQueue string) *Gateway {
	return &Gateway{client: c, taskQueue: taskQueue}
}

// Dial connects to the Temporal frontend. SDK logs go through logger.
func Dial(hostPort, namespace string, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial: %w", err)
	}
	return c, nil
}

// WorkflowID is deterministic per dispatch and ambulance, so a repeated start
// attaches to the running notification instead of calling the driver twice.
func WorkflowID(dispatchID, ambulanceID string) string {
	return "notify-" + dispatchID + "-" + ambulanceID
}

// Notify starts the workflow and waits for its receipt until ctx expires.
// The workflow keeps running if the caller stops waiting.
func (g *Gateway) Notify(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error) {
	opts := client.StartWorkflowOptions{
		ID:                       WorkflowID(n.DispatchID, n.AmbulanceID),
		TaskQueue:                g.taskQueue,
		WorkflowExecutionTimeout: 2 * time.Minute,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	run, err := g.client.ExecuteWorkflow(ctx, opts, workflows.NotifyDriverWorkflow, workflows.NotifyDriverInput{Notification: n})
	if err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("start notify workflow: %w", err)
	}

	var receipt domain.NotificationReceipt
	if err := run.Get(ctx, &receipt); err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("notify workflow %s: %w", run.GetID(), err)
	}
	if receipt.ProviderID == "" {
		receipt.ProviderID = run.GetRunID()
	}
	return receipt, nil
}

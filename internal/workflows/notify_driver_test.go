package workflows_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/rescuelink/internal/core/domain"
	"github.com/samirrijal/rescuelink/internal/workflows"
)

type permanentErr struct{}

func (permanentErr) Error() string   { return "invalid number" }
func (permanentErr) Permanent() bool { return true }

type fakeProvider struct {
	calls   atomic.Int32
	sms     atomic.Int32
	callErr func(attempt int32) error
	smsErr  error
}

func (p *fakeProvider) PlaceCall(ctx context.Context, to, message string) (string, error) {
	n := p.calls.Add(1)
	if p.callErr != nil {
		if err := p.callErr(n); err != nil {
			return "", err
		}
	}
	return "CA1", nil
}

func (p *fakeProvider) SendSMS(ctx context.Context, to, message string) (string, error) {
	p.sms.Add(1)
	if p.smsErr != nil {
		return "", p.smsErr
	}
	return "SM1", nil
}

func run(t *testing.T, p *fakeProvider) (domain.NotificationReceipt, error) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.NotifyDriverWorkflow)
	env.RegisterActivity(&workflows.NotifyActivities{Provider: p})

	env.ExecuteWorkflow(workflows.NotifyDriverWorkflow, workflows.NotifyDriverInput{
		Notification: domain.Notification{DispatchID: "d1", AmbulanceID: "a1", Contact: "+15550000001", Message: "help"},
	})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}

	var receipt domain.NotificationReceipt
	if err := env.GetWorkflowError(); err != nil {
		return receipt, err
	}
	if err := env.GetWorkflowResult(&receipt); err != nil {
		t.Fatalf("get result: %v", err)
	}
	return receipt, nil
}

func TestNotifyDriverWorkflow_CallSucceeds(t *testing.T) {
	p := &fakeProvider{}
	receipt, err := run(t, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ProviderID != "CA1" || receipt.Channel != "voice" {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if p.sms.Load() != 0 {
		t.Errorf("expected no sms, got %d", p.sms.Load())
	}
}

func TestNotifyDriverWorkflow_RetriesTransientCallError(t *testing.T) {
	p := &fakeProvider{callErr: func(attempt int32) error {
		if attempt < 3 {
			return errors.New("503 from provider")
		}
		return nil
	}}
	receipt, err := run(t, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls.Load() != 3 || receipt.Channel != "voice" {
		t.Errorf("expected success on third call attempt, calls=%d receipt=%+v", p.calls.Load(), receipt)
	}
}

func TestNotifyDriverWorkflow_PermanentFallsBackToSMS(t *testing.T) {
	p := &fakeProvider{callErr: func(int32) error { return permanentErr{} }}
	receipt, err := run(t, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", p.calls.Load())
	}
	if receipt.ProviderID != "SM1" || receipt.Channel != "sms" {
		t.Errorf("expected sms receipt, got %+v", receipt)
	}
}

func TestNotifyDriverWorkflow_BothFail(t *testing.T) {
	p := &fakeProvider{
		callErr: func(int32) error { return permanentErr{} },
		smsErr:  permanentErr{},
	}
	if _, err := run(t, p); err == nil {
		t.Fatal("expected workflow error")
	}
	if p.sms.Load() != 1 {
		t.Errorf("expected a single sms attempt, got %d", p.sms.Load())
	}
}

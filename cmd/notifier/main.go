// Command notifier is the Temporal worker that places driver calls and SMS
// for dispatches started with notify.driver=temporal.
package main

import (
	"log"
	"log/slog"

	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/rescuelink/internal/adapters/notify"
	temporaladapter "github.com/samirrijal/rescuelink/internal/adapters/temporal"
	"github.com/samirrijal/rescuelink/internal/pkg/config"
	"github.com/samirrijal/rescuelink/internal/pkg/logging"
	"github.com/samirrijal/rescuelink/internal/workflows"
)

func main() {
	cfg, err := config.Load("rescuelink-notifier")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup("rescuelink-notifier", cfg.Log.Level, cfg.Log.Format)

	if cfg.Notify.Twilio.AccountSID == "" || cfg.Notify.Twilio.AuthToken == "" || cfg.Notify.Twilio.FromNumber == "" {
		log.Fatal("notifier needs notify.twilio.account_sid, auth_token and from_number")
	}

	c, err := temporaladapter.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace, logger)
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	provider := notify.NewTwilio(notify.TwilioConfig{
		BaseURL:    cfg.Notify.Twilio.BaseURL,
		AccountSID: cfg.Notify.Twilio.AccountSID,
		AuthToken:  cfg.Notify.Twilio.AuthToken,
		FromNumber: cfg.Notify.Twilio.FromNumber,
		Timeout:    cfg.Dispatch.NotifyTimeout,
	})

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Dispatch.MaxConcurrent * 4,
	})
	w.RegisterWorkflow(workflows.NotifyDriverWorkflow)
	w.RegisterActivity(&workflows.NotifyActivities{Provider: provider})

	slog.Info("notifier worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

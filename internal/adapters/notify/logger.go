package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// Logger is a NotificationGateway that only writes the notification to the
// log. Used for local development.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (l *Logger) Notify(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.NotificationReceipt{}, err
	}
	id := "log-" + uuid.NewString()
	l.log.InfoContext(ctx, "driver notification",
		"dispatch_id", n.DispatchID,
		"ambulance_id", n.AmbulanceID,
		"contact", n.Contact,
		"callback_phone", n.CallbackPhone,
		"message", n.Message,
		"provider_id", id,
	)
	return domain.NotificationReceipt{Status: "logged", ProviderID: id, Channel: "log"}, nil
}

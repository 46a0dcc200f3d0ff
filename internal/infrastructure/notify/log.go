package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/core/ports"
)

// LogNotifier writes notifications to the log instead of sending them. It is
// used when no broker is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n ports.Notification) error {
	l.log.Info().
		Str("notification_id", n.ID).
		Str("subject", n.Subject).
		Strs("recipients", n.Recipients).
		Str("body", n.Body).
		Msg("notification")
	return nil
}

package notify

import (
	"context"
	"log/slog"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// LogSink writes every event to a structured logger. It stands in for the
// toast/email collaborator during local development.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs ev at info level.
func (s *LogSink) Deliver(ctx context.Context, ev model.Event) error {
	s.logger.InfoContext(ctx, "notification",
		"event_id", ev.ID,
		"type", ev.Type,
		"offering_id", ev.OfferingID,
		"user_id", ev.UserID,
		"status", ev.Status,
		"recipients", len(ev.Recipients),
	)
	return nil
}

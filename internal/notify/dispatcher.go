// ABOUTME: Notification dispatch for message fan-out
// ABOUTME: Defines the Dispatcher interface and the logging implementation

package notify

import (
	"context"
	"log/slog"
)

// Notification describes a single delivery to one recipient.
type Notification struct {
	RecipientID    string
	ConversationID string
	MessageID      string
	Subject        string
	Preview        string
	SenderName     string
}

// Dispatcher delivers notifications to recipients. Implementations must
// tolerate failure without affecting the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher records each notification via structured logging. It is
// the default backend when no external channel is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("component", "notify")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.logger.Info("notification dispatched",
		"recipient_id", n.RecipientID,
		"conversation_id", n.ConversationID,
		"message_id", n.MessageID,
		"sender", n.SenderName)
	return nil
}

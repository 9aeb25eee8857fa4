// ABOUTME: Asynchronous wrapper around a Dispatcher
// ABOUTME: Queues notifications on a buffered channel drained by a worker goroutine

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueueSize = 256
	suppressTTL      = time.Minute
)

// AsyncDispatcher decouples notification delivery from the request path.
// Enqueue never blocks the caller; when the queue is full the notification
// is dropped and a warning logged. Delivery failures are logged, never
// returned to the producer.
type AsyncDispatcher struct {
	inner  Dispatcher
	queue  chan Notification
	seen   *seenCache
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncDispatcher starts a worker goroutine draining the queue.
// A queueSize of 0 or less uses the default.
func NewAsyncDispatcher(inner Dispatcher, queueSize int, logger *slog.Logger) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &AsyncDispatcher{
		inner:  inner,
		queue:  make(chan Notification, queueSize),
		seen:   newSeenCache(suppressTTL),
		logger: logger.With("component", "notify"),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		if err := d.inner.Dispatch(context.Background(), n); err != nil {
			d.logger.Warn("notification delivery failed",
				"recipient_id", n.RecipientID,
				"conversation_id", n.ConversationID,
				"error", err)
		}
	}
}

// Dispatch enqueues the notification and returns immediately. It always
// returns nil; a full queue drops the notification with a warning, and a
// recently dispatched (recipient, message) pair is suppressed.
func (d *AsyncDispatcher) Dispatch(_ context.Context, n Notification) error {
	if d.seen.checkAndMark(n.RecipientID + "/" + n.MessageID) {
		d.logger.Debug("duplicate notification suppressed",
			"recipient_id", n.RecipientID,
			"message_id", n.MessageID)
		return nil
	}

	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			"recipient_id", n.RecipientID,
			"conversation_id", n.ConversationID)
	}
	return nil
}

// Close stops accepting notifications and waits for the worker to drain
// the queue.
func (d *AsyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}

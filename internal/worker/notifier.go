package worker

import (
	"context"
	"errors"
	"sync"

	"rentalhub/internal/domain"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

// Notifier drains the queue and hands every notification to each sender once.
type Notifier struct {
	queue   *NotificationQueue
	senders []domain.NotificationSender
	logger  *zerolog.Logger
	wg      sync.WaitGroup
}

func NewNotifier(queue *NotificationQueue, senders []domain.NotificationSender, logger *zerolog.Logger) *Notifier {
	return &Notifier{queue: queue, senders: senders, logger: logger}
}

// Start launches the consumer loop; it stops when ctx is done.
func (w *Notifier) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info().Int("senders", len(w.senders)).Msg("notifier started")
		defer w.logger.Info().Msg("notifier stopped")

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, ok := w.queue.Dequeue(ctx)
			if !ok {
				continue
			}
			w.deliver(ctx, n)
		}
	}()
}

// Wait blocks until the loop has exited.
func (w *Notifier) Wait() {
	w.wg.Wait()
}

// deliver makes a single attempt per sender. Failures are logged and counted only.
func (w *Notifier) deliver(ctx context.Context, n *models.Notification) {
	for _, sender := range w.senders {
		err := sender.Send(ctx, n)
		switch {
		case err == nil:
			metrics.IncNotification(sender.Name(), "sent")
		case errors.Is(err, errNoAddress):
			metrics.IncNotification(sender.Name(), "skipped")
		default:
			metrics.IncNotification(sender.Name(), "failed")
			w.logger.Error().
				Err(err).
				Str("channel", sender.Name()).
				Int64("recipient_id", n.RecipientID).
				Str("kind", string(n.Kind)).
				Msg("notification delivery failed")
		}
	}
}

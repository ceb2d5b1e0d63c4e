package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	defaultRecipientCacheSize = 512
	dispatchTimeout           = 5 * time.Second
)

// NotificationDispatcher turns bus events into queued notifications.
type NotificationDispatcher struct {
	users  domain.UserRepository
	queue  domain.NotificationQueue
	cache  *lru.Cache[int64, *models.User]
	logger *zerolog.Logger
}

func NewNotificationDispatcher(users domain.UserRepository, queue domain.NotificationQueue, cacheSize int, logger *zerolog.Logger) (*NotificationDispatcher, error) {
	if cacheSize <= 0 {
		cacheSize = defaultRecipientCacheSize
	}
	cache, err := lru.New[int64, *models.User](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("recipient cache: %w", err)
	}
	return &NotificationDispatcher{
		users:  users,
		queue:  queue,
		cache:  cache,
		logger: logger,
	}, nil
}

// Subscribe attaches the dispatcher to every lifecycle event.
func (d *NotificationDispatcher) Subscribe(bus *events.EventBus) {
	for _, eventType := range events.AllEventTypes {
		bus.Subscribe(eventType, d.Handle)
	}
}

// Handle runs synchronously on the publisher's goroutine, so it only resolves
// recipients and enqueues. Errors are logged and swallowed.
func (d *NotificationDispatcher) Handle(event *events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	kind, recipients, data, err := route(event)
	if err != nil {
		d.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event")
		return nil
	}

	for _, id := range recipients {
		user, err := d.recipient(ctx, id)
		if err != nil {
			d.logger.Warn().Err(err).Int64("user_id", id).Str("event_type", event.Type).Msg("notification recipient lookup failed")
			continue
		}
		n := &models.Notification{
			RecipientID:    user.ID,
			Email:          user.Email,
			Name:           user.Name,
			TelegramChatID: user.TelegramChatID,
			Kind:           kind,
			Data:           data,
			CreatedAt:      event.CreatedAt,
		}
		if err := d.queue.Enqueue(ctx, n); err != nil {
			d.logger.Error().Err(err).Int64("user_id", id).Str("kind", string(kind)).Msg("enqueue notification")
		}
	}
	return nil
}

func (d *NotificationDispatcher) recipient(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := d.cache.Get(id); ok {
		return user, nil
	}
	user, err := d.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Add(id, user)
	return user, nil
}

// route decides who hears about an event and what the template gets to render.
func route(event *events.Event) (models.NotificationKind, []int64, map[string]string, error) {
	switch event.Type {
	case events.EventPaymentUpdated:
		var p events.PaymentEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", nil, nil, err
		}
		data := map[string]string{
			"rental_id":      strconv.FormatInt(p.RentalID, 10),
			"transaction_id": strconv.FormatInt(p.TransactionID, 10),
			"status":         p.Status,
			"amount":         p.Amount.StringFixed(2),
		}
		return models.NotifyPaymentUpdated, []int64{p.RenterID}, data, nil

	case events.EventMessageSent:
		var p events.MessagePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", nil, nil, err
		}
		data := map[string]string{
			"rental_id":  strconv.FormatInt(p.RentalID, 10),
			"message_id": strconv.FormatInt(p.MessageID, 10),
		}
		return models.NotifyMessageReceived, []int64{p.RecipientID}, data, nil
	}

	var p events.RentalEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return "", nil, nil, err
	}
	data := map[string]string{
		"rental_id":   strconv.FormatInt(p.RentalID, 10),
		"equipment":   p.EquipmentTitle,
		"start_date":  p.StartDate,
		"end_date":    p.EndDate,
		"total_price": p.TotalPrice.StringFixed(2),
		"status":      p.Status,
	}
	if p.Note != "" {
		data["note"] = p.Note
	}

	switch event.Type {
	case events.EventRentalRequested:
		return models.NotifyRentalRequested, []int64{p.OwnerID}, data, nil
	case events.EventRentalAccepted:
		return models.NotifyRentalAccepted, []int64{p.RenterID}, data, nil
	case events.EventRentalRejected:
		return models.NotifyRentalRejected, []int64{p.RenterID}, data, nil
	case events.EventRentalCancelled:
		other := p.OwnerID
		if p.ActorID == p.OwnerID {
			other = p.RenterID
		}
		return models.NotifyRentalCancelled, []int64{other}, data, nil
	case events.EventRentalInProgress:
		return models.NotifyRentalInProgress, []int64{p.RenterID, p.OwnerID}, data, nil
	case events.EventRentalCompleted:
		return models.NotifyRentalCompleted, []int64{p.RenterID}, data, nil
	case events.EventRentalReturned:
		return models.NotifyRentalReturned, []int64{p.RenterID}, data, nil
	}
	return "", nil, nil, fmt.Errorf("unknown event type %q", event.Type)
}

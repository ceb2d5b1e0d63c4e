package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventRentalRequested  = "rental_requested"
	EventRentalAccepted   = "rental_accepted"
	EventRentalRejected   = "rental_rejected"
	EventRentalCancelled  = "rental_cancelled"
	EventRentalInProgress = "rental_in_progress"
	EventRentalCompleted  = "rental_completed"
	EventRentalReturned   = "rental_returned"
	EventPaymentUpdated   = "payment_updated"
	EventMessageSent      = "message_sent"
)

// AllEventTypes lists every event the lifecycle can publish.
var AllEventTypes = []string{
	EventRentalRequested,
	EventRentalAccepted,
	EventRentalRejected,
	EventRentalCancelled,
	EventRentalInProgress,
	EventRentalCompleted,
	EventRentalReturned,
	EventPaymentUpdated,
	EventMessageSent,
}

// RentalEventPayload describes the minimal rental snapshot for event consumers.
type RentalEventPayload struct {
	RentalID       int64           `json:"rental_id"`
	EquipmentID    int64           `json:"equipment_id"`
	EquipmentTitle string          `json:"equipment_title,omitempty"`
	RenterID       int64           `json:"renter_id"`
	OwnerID        int64           `json:"owner_id"`
	Status         string          `json:"status"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Note           string          `json:"note,omitempty"`
	ActorID        int64           `json:"actor_id,omitempty"`
}

// PaymentEventPayload is published whenever a transaction status changes.
type PaymentEventPayload struct {
	TransactionID int64           `json:"transaction_id"`
	RentalID      int64           `json:"rental_id"`
	RenterID      int64           `json:"renter_id"`
	OwnerID       int64           `json:"owner_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
}

// MessagePayload carries a new message notice; the content itself stays in the thread.
type MessagePayload struct {
	MessageID   int64 `json:"message_id"`
	RentalID    int64 `json:"rental_id"`
	SenderID    int64 `json:"sender_id"`
	RecipientID int64 `json:"recipient_id"`
}

// Event is one published fact. ID grows monotonically per bus.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus is a synchronous in-process pub/sub. Handlers run in subscription
// order on the publisher's goroutine.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	seq         atomic.Int64
	now         func() time.Time
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), now: time.Now}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish delivers the event to every subscriber, even when earlier ones fail.
// The returned error joins all handler failures.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	event.ID = b.seq.Add(1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := safeCall(handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeCall(handler EventHandler, event *Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.Type, rec)
		}
	}()
	return handler(event)
}

// PublishJSON encodes payload and publishes it. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

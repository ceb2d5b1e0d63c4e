package models

import "time"

type NotificationKind string

const (
	NotifyRentalRequested  NotificationKind = "rental_requested"
	NotifyRentalAccepted   NotificationKind = "rental_accepted"
	NotifyRentalRejected   NotificationKind = "rental_rejected"
	NotifyRentalCancelled  NotificationKind = "rental_cancelled"
	NotifyRentalInProgress NotificationKind = "rental_in_progress"
	NotifyRentalCompleted  NotificationKind = "rental_completed"
	NotifyRentalReturned   NotificationKind = "rental_returned"
	NotifyPaymentUpdated   NotificationKind = "payment_updated"
	NotifyMessageReceived  NotificationKind = "message_received"
)

// Notification is one outbound notice for one recipient.
type Notification struct {
	RecipientID    int64             `json:"recipient_id"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	TelegramChatID *int64            `json:"telegram_chat_id,omitempty"`
	Kind           NotificationKind  `json:"kind"`
	Data           map[string]string `json:"data"`
	CreatedAt      time.Time         `json:"created_at"`
}

package domain

import (
	"context"
	"time"

	"rentalhub/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type EquipmentRepository interface {
	CreateEquipment(ctx context.Context, eq *models.Equipment) error
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	UpdateEquipment(ctx context.Context, eq *models.Equipment) error
	SetEquipmentAvailability(ctx context.Context, id int64, available bool) error
	DeleteEquipment(ctx context.Context, id int64) error
	ListAvailableEquipment(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, int, error)
	ListEquipmentByOwner(ctx context.Context, ownerID int64) ([]*models.Equipment, error)
}

type RentalRepository interface {
	HasConflict(ctx context.Context, equipmentID int64, period models.DateRange) (bool, error)
	CreateRentalWithLock(ctx context.Context, rental *models.Rental) error
	GetRental(ctx context.Context, id int64) (*models.Rental, error)
	ListRentals(ctx context.Context, filter models.RentalFilter) ([]*models.Rental, error)
	UpdateRentalStatusWithVersion(ctx context.Context, rental *models.Rental, from models.RentalStatus) error
	AcceptRentalWithLock(ctx context.Context, rental *models.Rental) error
	CompleteRentalWithReturn(ctx context.Context, rental *models.Rental) error
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	GetTransactionByProviderReference(ctx context.Context, reference string) (*models.Transaction, error)
	HasApprovedTransaction(ctx context.Context, rentalID int64) (bool, error)
	ListTransactionsForUser(ctx context.Context, userID int64) ([]*models.Transaction, error)
	UpdateTransactionStatusWithVersion(ctx context.Context, txn *models.Transaction) error
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	HasReview(ctx context.Context, rentalID int64) (bool, error)
	DeleteReview(ctx context.Context, id int64) error
	ListEquipmentReviews(ctx context.Context, equipmentID int64) ([]*models.Review, error)
	ListUserReviews(ctx context.Context, userID int64) ([]*models.Review, error)
	EquipmentRating(ctx context.Context, equipmentID int64) (models.RatingSummary, error)
	UserRating(ctx context.Context, userID int64) (models.RatingSummary, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessagesAndMarkRead(ctx context.Context, rentalID, readerID int64, readAt time.Time) ([]*models.Message, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// QuotaStore counts hits per key inside a fixed window.
type QuotaStore interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PaymentProvider registers a payment with the external provider and returns its reference.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, rental *models.Rental, txn *models.Transaction) (string, error)
}

// NotificationSender delivers a notification over one channel.
type NotificationSender interface {
	Name() string
	Send(ctx context.Context, n *models.Notification) error
}

type NotificationQueue interface {
	Enqueue(ctx context.Context, n *models.Notification) error
}

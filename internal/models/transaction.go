package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionApproved  TransactionStatus = "approved"
	TransactionRejected  TransactionStatus = "rejected"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionApproved, TransactionRejected, TransactionCancelled, TransactionRefunded:
		return true
	}
	return false
}

// MapProviderStatus translates the payment provider's vocabulary.
// Unknown values map to pending.
func MapProviderStatus(raw string) TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return TransactionApproved
	case "rejected":
		return TransactionRejected
	case "cancelled", "canceled":
		return TransactionCancelled
	case "refunded":
		return TransactionRefunded
	default:
		return TransactionPending
	}
}

type Transaction struct {
	ID                int64             `json:"id"`
	RentalID          int64             `json:"rental_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	ProviderReference *string           `json:"provider_reference"`
	PaymentMethod     *string           `json:"payment_method"`
	Details           *string           `json:"details,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Version           int64             `json:"version"`
}

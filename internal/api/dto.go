package api

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type createUserRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"max=30"`
	TelegramChatID *int64 `json:"telegram_chat_id"`
}

type equipmentRequest struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=1000"`
	Category    string          `json:"category" validate:"required,max=50"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	City        string          `json:"city" validate:"required,max=100"`
	Region      string          `json:"region" validate:"required,len=2,alpha"`
	Address     string          `json:"address" validate:"max=255"`
	Image       string          `json:"image"`
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type createRentalRequest struct {
	EquipmentID int64  `json:"equipment_id" validate:"required,gt=0"`
	StartDate   string `json:"start_date" validate:"required"`
	EndDate     string `json:"end_date" validate:"required"`
	Note        string `json:"note" validate:"max=1000"`
}

type noteRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

type webhookRequest struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Status string `json:"status"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
	ExternalPaymentID string `json:"externalPaymentId"`
}

type createReviewRequest struct {
	RentalID int64  `json:"rental_id" validate:"required,gt=0"`
	Kind     string `json:"kind" validate:"required,oneof=equipment counterparty"`
	Rating   int    `json:"rating" validate:"gte=1,lte=5"`
	Comment  string `json:"comment" validate:"max=1000"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Equipment struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	City        string          `json:"city"`
	Region      string          `json:"region"`
	Address     string          `json:"address,omitempty"`
	Image       string          `json:"image,omitempty"`
	Available   bool            `json:"available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PriceFor computes the total for a range: price per day times whole days.
func (e *Equipment) PriceFor(period DateRange) decimal.Decimal {
	return e.PricePerDay.Mul(decimal.NewFromInt(int64(period.Days())))
}

// EquipmentFilter narrows the public catalogue listing.
type EquipmentFilter struct {
	Category string
	City     string
	Region   string
	Query    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	PageSize int
}

// Normalize clamps paging to sane bounds.
func (f *EquipmentFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// Offset returns the row offset for the current page.
func (f EquipmentFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

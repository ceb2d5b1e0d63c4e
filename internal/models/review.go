package models

import (
	"fmt"
	"strings"
	"time"
)

type ReviewKind string

const (
	// ReviewEquipment is the renter reviewing the listing; the owner is the reviewee.
	ReviewEquipment ReviewKind = "equipment"
	// ReviewCounterparty is the owner reviewing the renter.
	ReviewCounterparty ReviewKind = "counterparty"
)

func ParseReviewKind(raw string) (ReviewKind, error) {
	k := ReviewKind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case ReviewEquipment, ReviewCounterparty:
		return k, nil
	}
	return "", fmt.Errorf("unknown review kind %q", raw)
}

type Review struct {
	ID          int64      `json:"id"`
	RentalID    int64      `json:"rental_id"`
	EquipmentID int64      `json:"equipment_id"`
	ReviewerID  int64      `json:"reviewer_id"`
	RevieweeID  int64      `json:"reviewee_id"`
	Rating      int        `json:"rating"`
	Comment     *string    `json:"comment"`
	Kind        ReviewKind `json:"kind"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RatingSummary carries the mean rating; Average is nil when Count is zero.
type RatingSummary struct {
	Average *float64 `json:"average"`
	Count   int      `json:"count"`
}

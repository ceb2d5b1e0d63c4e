package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalPending    RentalStatus = "pending"
	RentalAccepted   RentalStatus = "accepted"
	RentalRejected   RentalStatus = "rejected"
	RentalInProgress RentalStatus = "in_progress"
	RentalCompleted  RentalStatus = "completed"
	RentalCancelled  RentalStatus = "cancelled"
)

// AllRentalStatuses lists every rental status.
var AllRentalStatuses = []RentalStatus{
	RentalPending,
	RentalAccepted,
	RentalRejected,
	RentalInProgress,
	RentalCompleted,
	RentalCancelled,
}

// ActiveRentalStatuses block overlapping requests for the same equipment.
var ActiveRentalStatuses = []RentalStatus{RentalAccepted, RentalInProgress}

// ParseRentalStatus converts raw input into a known status.
func ParseRentalStatus(raw string) (RentalStatus, error) {
	s := RentalStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown rental status %q", raw)
	}
	return s, nil
}

func (s RentalStatus) Valid() bool {
	switch s {
	case RentalPending, RentalAccepted, RentalRejected, RentalInProgress, RentalCompleted, RentalCancelled:
		return true
	}
	return false
}

// Next returns the statuses reachable from s.
func (s RentalStatus) Next() []RentalStatus {
	switch s {
	case RentalPending:
		return []RentalStatus{RentalAccepted, RentalRejected, RentalCancelled}
	case RentalAccepted:
		return []RentalStatus{RentalInProgress, RentalCancelled}
	case RentalInProgress:
		return []RentalStatus{RentalCompleted}
	case RentalRejected, RentalCompleted, RentalCancelled:
		return nil
	}
	return nil
}

func (s RentalStatus) CanTransitionTo(next RentalStatus) bool {
	for _, candidate := range s.Next() {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s RentalStatus) IsTerminal() bool {
	return s.Valid() && len(s.Next()) == 0
}

// BlocksAvailability reports whether a rental in this status occupies its dates.
func (s RentalStatus) BlocksAvailability() bool {
	return s == RentalAccepted || s == RentalInProgress
}

type Rental struct {
	ID          int64           `json:"id"`
	EquipmentID int64           `json:"equipment_id"`
	RenterID    int64           `json:"renter_id"`
	OwnerID     int64           `json:"owner_id"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Status      RentalStatus    `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	RespondedAt *time.Time      `json:"responded_at"`
	OwnerNote   *string         `json:"owner_note"`
	RenterNote  *string         `json:"renter_note"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int64           `json:"version"`
}

func (r *Rental) Period() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate}
}

// IsParty reports whether the user is the renter or the owner.
func (r *Rental) IsParty(userID int64) bool {
	return userID == r.RenterID || userID == r.OwnerID
}

// Counterparty returns the other side of the rental for a party.
func (r *Rental) Counterparty(userID int64) int64 {
	if userID == r.RenterID {
		return r.OwnerID
	}
	return r.RenterID
}

type RentalRole string

const (
	RoleRenter RentalRole = "renter"
	RoleOwner  RentalRole = "owner"
	RoleAll    RentalRole = "all"
)

// RentalFilter scopes a user's rental listing.
type RentalFilter struct {
	UserID int64
	Role   RentalRole
	Status *RentalStatus
}

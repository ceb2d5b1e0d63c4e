package service

import (
	"context"
	"fmt"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"
)

// AvailabilityChecker answers whether an equipment is free for a date range.
// Only Accepted and InProgress rentals occupy dates; ranges are half-open.
type AvailabilityChecker struct {
	rentals domain.RentalRepository
}

func NewAvailabilityChecker(rentals domain.RentalRepository) *AvailabilityChecker {
	return &AvailabilityChecker{rentals: rentals}
}

func (c *AvailabilityChecker) HasConflict(ctx context.Context, equipmentID int64, period models.DateRange) (bool, error) {
	if !period.Valid() {
		return false, validationError("end date must be after start date")
	}
	conflict, err := c.rentals.HasConflict(ctx, equipmentID, period)
	if err != nil {
		return false, fmt.Errorf("check availability for equipment %d: %w", equipmentID, err)
	}
	return conflict, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// CreateRentalRequest is a renter's request for a date range [Start, End).
type CreateRentalRequest struct {
	EquipmentID int64
	Start       time.Time
	End         time.Time
	Note        string
}

// RentalService is the only writer of rental status.
type RentalService struct {
	rentals       domain.RentalRepository
	equipment     domain.EquipmentRepository
	transactions  domain.TransactionRepository
	availability  *AvailabilityChecker
	eventBus      domain.EventPublisher
	maxRentalDays int
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewRentalService(
	rentals domain.RentalRepository,
	equipment domain.EquipmentRepository,
	transactions domain.TransactionRepository,
	eventBus domain.EventPublisher,
	maxRentalDays int,
	logger *zerolog.Logger,
) *RentalService {
	if maxRentalDays <= 0 {
		maxRentalDays = models.DefaultMaxRentalDays
	}
	return &RentalService{
		rentals:       rentals,
		equipment:     equipment,
		transactions:  transactions,
		availability:  NewAvailabilityChecker(rentals),
		eventBus:      eventBus,
		maxRentalDays: maxRentalDays,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *RentalService) Availability() *AvailabilityChecker {
	return s.availability
}

func (s *RentalService) Create(ctx context.Context, actorID int64, req CreateRentalRequest) (*models.Rental, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	period := models.NewDateRange(req.Start, req.End)
	if !period.Valid() {
		return nil, validationError("end date must be after start date")
	}
	if period.Start.Before(models.TruncateDate(s.now())) {
		return nil, validationError("start date cannot be in the past")
	}
	if period.Days() > s.maxRentalDays {
		return nil, validationError("rental cannot exceed %d days", s.maxRentalDays)
	}

	eq, err := s.equipment.GetEquipment(ctx, req.EquipmentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, validationError("equipment not found")
	}
	if err != nil {
		return nil, err
	}
	if eq.OwnerID == actorID {
		return nil, validationError("you cannot rent your own equipment")
	}
	if !eq.Available {
		return nil, validationError("equipment is not available")
	}

	conflict, err := s.availability.HasConflict(ctx, eq.ID, period)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, errUnavailableDates
	}

	rental := &models.Rental{
		EquipmentID: eq.ID,
		RenterID:    actorID,
		OwnerID:     eq.OwnerID,
		StartDate:   period.Start,
		EndDate:     period.End,
		TotalPrice:  eq.PriceFor(period),
		Status:      models.RentalPending,
		RequestedAt: s.now().UTC(),
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		rental.RenterNote = &note
	}

	// the lock re-checks overlaps inside the write transaction
	if err := s.rentals.CreateRentalWithLock(ctx, rental); err != nil {
		if errors.Is(err, database.ErrRentalConflict) {
			return nil, errUnavailableDates
		}
		return nil, translateStorageError(err, "rental")
	}

	s.logger.Info().
		Int64("rental_id", rental.ID).
		Int64("equipment_id", eq.ID).
		Int64("actor_id", actorID).
		Str("total", rental.TotalPrice.StringFixed(2)).
		Msg("rental requested")
	s.publish(events.EventRentalRequested, rental, eq.Title, actorID, req.Note)
	return rental, nil
}

// errUnavailableDates is a validation error that still matches database.ErrRentalConflict.
var errUnavailableDates = fmt.Errorf("%w: %w", ErrValidation, database.ErrRentalConflict)

func (s *RentalService) Accept(ctx context.Context, actorID, rentalID int64) (*models.Rental, error) {
	rental, err := s.loadForTransition(ctx, actorID, rentalID, ownerOnly, models.RentalAccepted)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rental.Status = models.RentalAccepted
	rental.RespondedAt = &now
	if err := s.rentals.AcceptRentalWithLock(ctx, rental); err != nil {
		if errors.Is(err, database.ErrRentalConflict) {
			return nil, conflictError("another accepted rental overlaps these dates")
		}
		return nil, translateStorageError(err, "rental")
	}

	s.afterTransition(ctx, rental, events.EventRentalAccepted, actorID, "")
	return rental, nil
}

func (s *RentalService) Reject(ctx context.Context, actorID, rentalID int64, note string) (*models.Rental, error) {
	rental, err := s.loadForTransition(ctx, actorID, rentalID, ownerOnly, models.RentalRejected)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rental.Status = models.RentalRejected
	rental.RespondedAt = &now
	if note = strings.TrimSpace(note); note != "" {
		rental.OwnerNote = &note
	}
	if err := s.rentals.UpdateRentalStatusWithVersion(ctx, rental, models.RentalPending); err != nil {
		return nil, translateStorageError(err, "rental")
	}

	s.afterTransition(ctx, rental, events.EventRentalRejected, actorID, note)
	return rental, nil
}

// Cancel is open to both parties while the rental is Pending or Accepted.
func (s *RentalService) Cancel(ctx context.Context, actorID, rentalID int64, note string) (*models.Rental, error) {
	rental, err := s.loadForTransition(ctx, actorID, rentalID, eitherParty, models.RentalCancelled)
	if err != nil {
		return nil, err
	}

	from := rental.Status
	rental.Status = models.RentalCancelled
	if note = strings.TrimSpace(note); note != "" {
		if actorID == rental.OwnerID {
			rental.OwnerNote = &note
		} else {
			rental.RenterNote = &note
		}
	}
	if err := s.rentals.UpdateRentalStatusWithVersion(ctx, rental, from); err != nil {
		return nil, translateStorageError(err, "rental")
	}

	s.afterTransition(ctx, rental, events.EventRentalCancelled, actorID, note)
	return rental, nil
}

// MarkInProgress is driven by the payment gate only. It requires an approved
// transaction and is a no-op for a rental that is already in progress.
func (s *RentalService) MarkInProgress(ctx context.Context, rentalID int64) (*models.Rental, error) {
	rental, err := s.rentals.GetRental(ctx, rentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	if rental.Status == models.RentalInProgress {
		return rental, nil
	}
	if !rental.Status.CanTransitionTo(models.RentalInProgress) {
		return nil, conflictError("rental is %s, expected %s", rental.Status, models.RentalAccepted)
	}

	paid, err := s.transactions.HasApprovedTransaction(ctx, rental.ID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, conflictError("rental has no approved payment")
	}

	rental.Status = models.RentalInProgress
	if err := s.rentals.UpdateRentalStatusWithVersion(ctx, rental, models.RentalAccepted); err != nil {
		return nil, translateStorageError(err, "rental")
	}

	s.afterTransition(ctx, rental, events.EventRentalInProgress, 0, "")
	return rental, nil
}

// ConfirmReturn completes the rental and marks the equipment available again.
func (s *RentalService) ConfirmReturn(ctx context.Context, actorID, rentalID int64) (*models.Rental, error) {
	rental, err := s.loadForTransition(ctx, actorID, rentalID, ownerOnly, models.RentalCompleted)
	if err != nil {
		return nil, err
	}

	rental.Status = models.RentalCompleted
	if err := s.rentals.CompleteRentalWithReturn(ctx, rental); err != nil {
		return nil, translateStorageError(err, "rental")
	}

	s.afterTransition(ctx, rental, events.EventRentalReturned, actorID, "")
	return rental, nil
}

// Conclude completes the rental without touching the equipment availability flag.
// ConfirmReturn is the variant that releases the equipment.
func (s *RentalService) Conclude(ctx context.Context, actorID, rentalID int64) (*models.Rental, error) {
	rental, err := s.loadForTransition(ctx, actorID, rentalID, ownerOnly, models.RentalCompleted)
	if err != nil {
		return nil, err
	}

	rental.Status = models.RentalCompleted
	if err := s.rentals.UpdateRentalStatusWithVersion(ctx, rental, models.RentalInProgress); err != nil {
		return nil, translateStorageError(err, "rental")
	}

	s.afterTransition(ctx, rental, events.EventRentalCompleted, actorID, "")
	return rental, nil
}

func (s *RentalService) Get(ctx context.Context, actorID, rentalID int64) (*models.Rental, error) {
	return s.loadForParty(ctx, actorID, rentalID)
}

func (s *RentalService) List(ctx context.Context, actorID int64, role models.RentalRole, status *models.RentalStatus) ([]*models.Rental, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleAll
	}
	if !lo.Contains([]models.RentalRole{models.RoleRenter, models.RoleOwner, models.RoleAll}, role) {
		return nil, validationError("unknown role %q", role)
	}
	if status != nil && !status.Valid() {
		return nil, validationError("unknown status %q", *status)
	}

	rentals, err := s.rentals.ListRentals(ctx, models.RentalFilter{UserID: actorID, Role: role, Status: status})
	if err != nil {
		return nil, err
	}
	if rentals == nil {
		rentals = []*models.Rental{}
	}
	return rentals, nil
}

// loadForParty fetches the rental and requires the actor to be renter or owner.
func (s *RentalService) loadForParty(ctx context.Context, actorID, rentalID int64) (*models.Rental, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	rental, err := s.rentals.GetRental(ctx, rentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	if !rental.IsParty(actorID) {
		return nil, forbiddenError("not a party to this rental")
	}
	return rental, nil
}

type actorRule int

const (
	ownerOnly actorRule = iota
	eitherParty
)

func (s *RentalService) loadForTransition(
	ctx context.Context,
	actorID, rentalID int64,
	rule actorRule,
	target models.RentalStatus,
) (*models.Rental, error) {
	rental, err := s.loadForParty(ctx, actorID, rentalID)
	if err != nil {
		return nil, err
	}
	if rule == ownerOnly && actorID != rental.OwnerID {
		return nil, forbiddenError("only the equipment owner can do this")
	}
	if !rental.Status.CanTransitionTo(target) {
		return nil, conflictError("rental is %s and cannot become %s", rental.Status, target)
	}
	return rental, nil
}

func (s *RentalService) afterTransition(ctx context.Context, rental *models.Rental, eventType string, actorID int64, note string) {
	metrics.IncRentalTransition(string(rental.Status))
	s.logger.Info().
		Int64("rental_id", rental.ID).
		Int64("actor_id", actorID).
		Str("status", string(rental.Status)).
		Msg("rental status changed")
	s.publish(eventType, rental, s.equipmentTitle(ctx, rental.EquipmentID), actorID, note)
}

// equipmentTitle falls back to an empty title when the listing cannot be read.
func (s *RentalService) equipmentTitle(ctx context.Context, equipmentID int64) string {
	if s.eventBus == nil {
		return ""
	}
	eq, err := s.equipment.GetEquipment(ctx, equipmentID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("equipment_id", equipmentID).Msg("load equipment title error")
		return ""
	}
	return eq.Title
}

func (s *RentalService) publish(eventType string, rental *models.Rental, title string, actorID int64, note string) {
	if s.eventBus == nil {
		return
	}

	payload := events.RentalEventPayload{
		RentalID:       rental.ID,
		EquipmentID:    rental.EquipmentID,
		EquipmentTitle: title,
		RenterID:       rental.RenterID,
		OwnerID:        rental.OwnerID,
		Status:         string(rental.Status),
		StartDate:      rental.StartDate.Format(models.DateLayout),
		EndDate:        rental.EndDate.Format(models.DateLayout),
		TotalPrice:     rental.TotalPrice,
		Note:           note,
		ActorID:        actorID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("rental_id", rental.ID).Msg("publish event error")
	}
}

package service

import (
	"context"
	"strings"
	"unicode"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EquipmentInput carries the owner-editable listing fields.
type EquipmentInput struct {
	Title       string
	Description string
	Category    string
	PricePerDay decimal.Decimal
	City        string
	Region      string
	Address     string
	Image       string
}

// EquipmentPage is one page of the public catalogue.
type EquipmentPage struct {
	Items    []*models.Equipment `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

type EquipmentService struct {
	equipment domain.EquipmentRepository
	logger    *zerolog.Logger
}

func NewEquipmentService(equipment domain.EquipmentRepository, logger *zerolog.Logger) *EquipmentService {
	return &EquipmentService{equipment: equipment, logger: logger}
}

func (in *EquipmentInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.City = strings.TrimSpace(in.City)
	in.Region = strings.ToUpper(strings.TrimSpace(in.Region))

	switch {
	case in.Title == "":
		return validationError("title is required")
	case in.Category == "":
		return validationError("category is required")
	case in.City == "":
		return validationError("city is required")
	case !in.PricePerDay.IsPositive():
		return validationError("price per day must be positive")
	case len(in.Region) != 2 || !isLetters(in.Region):
		return validationError("region must be a 2-letter code")
	}
	return nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func (s *EquipmentService) Create(ctx context.Context, actorID int64, in EquipmentInput) (*models.Equipment, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	eq := &models.Equipment{
		OwnerID:   actorID,
		Available: true,
	}
	apply(eq, in)
	if err := s.equipment.CreateEquipment(ctx, eq); err != nil {
		return nil, translateStorageError(err, "user")
	}

	s.logger.Info().Int64("equipment_id", eq.ID).Int64("actor_id", actorID).Msg("equipment listed")
	return eq, nil
}

func (s *EquipmentService) Update(ctx context.Context, actorID, equipmentID int64, in EquipmentInput) (*models.Equipment, error) {
	eq, err := s.loadOwned(ctx, actorID, equipmentID)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	apply(eq, in)
	if err := s.equipment.UpdateEquipment(ctx, eq); err != nil {
		return nil, translateStorageError(err, "equipment")
	}
	return eq, nil
}

// SetAvailability is the owner's explicit toggle of the availability flag.
func (s *EquipmentService) SetAvailability(ctx context.Context, actorID, equipmentID int64, available bool) (*models.Equipment, error) {
	eq, err := s.loadOwned(ctx, actorID, equipmentID)
	if err != nil {
		return nil, err
	}
	if err := s.equipment.SetEquipmentAvailability(ctx, eq.ID, available); err != nil {
		return nil, translateStorageError(err, "equipment")
	}
	eq.Available = available
	return eq, nil
}

// Delete removes a listing unless a Pending, Accepted or InProgress rental references it.
func (s *EquipmentService) Delete(ctx context.Context, actorID, equipmentID int64) error {
	eq, err := s.loadOwned(ctx, actorID, equipmentID)
	if err != nil {
		return err
	}
	if err := s.equipment.DeleteEquipment(ctx, eq.ID); err != nil {
		return translateStorageError(err, "equipment")
	}
	s.logger.Info().Int64("equipment_id", eq.ID).Int64("actor_id", actorID).Msg("equipment deleted")
	return nil
}

func (s *EquipmentService) Get(ctx context.Context, equipmentID int64) (*models.Equipment, error) {
	eq, err := s.equipment.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, translateStorageError(err, "equipment")
	}
	return eq, nil
}

func (s *EquipmentService) List(ctx context.Context, filter models.EquipmentFilter) (*EquipmentPage, error) {
	filter.Normalize()
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, validationError("min_price cannot exceed max_price")
	}
	items, total, err := s.equipment.ListAvailableEquipment(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Equipment{}
	}
	return &EquipmentPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *EquipmentService) ListMine(ctx context.Context, actorID int64) ([]*models.Equipment, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	items, err := s.equipment.ListEquipmentByOwner(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Equipment{}
	}
	return items, nil
}

func (s *EquipmentService) loadOwned(ctx context.Context, actorID, equipmentID int64) (*models.Equipment, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	eq, err := s.equipment.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, translateStorageError(err, "equipment")
	}
	if eq.OwnerID != actorID {
		return nil, forbiddenError("only the owner can change this equipment")
	}
	return eq, nil
}

func apply(eq *models.Equipment, in EquipmentInput) {
	eq.Title = in.Title
	eq.Description = strings.TrimSpace(in.Description)
	eq.Category = in.Category
	eq.PricePerDay = in.PricePerDay
	eq.City = in.City
	eq.Region = in.Region
	eq.Address = strings.TrimSpace(in.Address)
	eq.Image = in.Image
}

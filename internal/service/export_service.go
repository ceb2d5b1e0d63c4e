package service

import (
	"context"
	"fmt"
	"io"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Rentals"

var exportHeaders = []string{
	"ID", "Role", "Equipment", "Start", "End", "Days", "Total", "Status", "Requested At",
}

// ExportService renders a user's rentals into an .xlsx workbook.
type ExportService struct {
	rentals   domain.RentalRepository
	equipment domain.EquipmentRepository
	logger    *zerolog.Logger
}

func NewExportService(rentals domain.RentalRepository, equipment domain.EquipmentRepository, logger *zerolog.Logger) *ExportService {
	return &ExportService{rentals: rentals, equipment: equipment, logger: logger}
}

// WriteRentals writes every rental where the actor is renter or owner to w.
func (s *ExportService) WriteRentals(ctx context.Context, actorID int64, w io.Writer) (int, error) {
	if err := requireActor(actorID); err != nil {
		return 0, err
	}
	rentals, err := s.rentals.ListRentals(ctx, models.RentalFilter{UserID: actorID, Role: models.RoleAll})
	if err != nil {
		return 0, err
	}

	titles := s.equipmentTitles(ctx, rentals)

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, header)
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for i, r := range rentals {
		row := []any{
			r.ID,
			lo.Ternary(r.RenterID == actorID, string(models.RoleRenter), string(models.RoleOwner)),
			titles[r.EquipmentID],
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			r.Period().Days(),
			r.TotalPrice.StringFixed(2),
			string(r.Status),
			r.RequestedAt.UTC().Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 10)
	_ = f.SetColWidth(exportSheet, "C", "C", 30)
	_ = f.SetColWidth(exportSheet, "D", "I", 16)

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("error writing workbook: %w", err)
	}

	s.logger.Info().Int64("actor_id", actorID).Int("rows", len(rentals)).Msg("rentals exported")
	return len(rentals), nil
}

func (s *ExportService) equipmentTitles(ctx context.Context, rentals []*models.Rental) map[int64]string {
	ids := lo.Uniq(lo.Map(rentals, func(r *models.Rental, _ int) int64 { return r.EquipmentID }))
	titles := make(map[int64]string, len(ids))
	for _, id := range ids {
		eq, err := s.equipment.GetEquipment(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("equipment_id", id).Msg("export: equipment lookup failed")
			titles[id] = fmt.Sprintf("#%d", id)
			continue
		}
		titles[id] = eq.Title
	}
	return titles
}

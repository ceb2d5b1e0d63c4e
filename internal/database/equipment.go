package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentalhub/internal/models"
)

const equipmentColumns = `id, owner_id, title, description, category, price_per_day, city, region,
	address, image, available, created_at, updated_at`

func (db *DB) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `INSERT INTO equipment (
				owner_id, title, description, category, price_per_day, city, region,
				address, image, available, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eq.OwnerID, eq.Title, eq.Description, eq.Category, eq.PricePerDay.String(), eq.City, eq.Region,
		eq.Address, eq.Image, eq.Available, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("owner %d: %w", eq.OwnerID, ErrNotFound)
		}
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	eq.ID = id
	eq.CreatedAt = now
	eq.UpdatedAt = now
	return nil
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id)
	eq, err := scanEquipment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment %d: %w", id, err)
	}
	return eq, nil
}

func (db *DB) UpdateEquipment(ctx context.Context, eq *models.Equipment) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `UPDATE equipment SET
				title = ?, description = ?, category = ?, price_per_day = ?, city = ?, region = ?,
				address = ?, image = ?, available = ?, updated_at = ?
			WHERE id = ?`,
		eq.Title, eq.Description, eq.Category, eq.PricePerDay.String(), eq.City, eq.Region,
		eq.Address, eq.Image, eq.Available, now, eq.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	eq.UpdatedAt = now
	return nil
}

func (db *DB) SetEquipmentAvailability(ctx context.Context, id int64, available bool) error {
	result, err := db.ExecContext(ctx, `UPDATE equipment SET available = ?, updated_at = ? WHERE id = ?`,
		available, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update equipment availability: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEquipment removes a listing that has no rentals in flight.
// Historical rentals still hold the row through the RESTRICT foreign key.
func (db *DB) DeleteEquipment(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var inFlight int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rentals WHERE equipment_id = ? AND status IN (?, ?, ?)`,
		id, models.RentalPending, models.RentalAccepted, models.RentalInProgress,
	).Scan(&inFlight)
	if err != nil {
		return fmt.Errorf("failed to count rentals in tx: %w", err)
	}
	if inFlight > 0 {
		return ErrEquipmentInUse
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrEquipmentInUse
		}
		return fmt.Errorf("failed to delete equipment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// ListAvailableEquipment returns one page of available listings and the total match count.
func (db *DB) ListAvailableEquipment(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, int, error) {
	filter.Normalize()

	where := []string{"available = 1"}
	var args []any
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.City != "" {
		where = append(where, "LOWER(city) = LOWER(?)")
		args = append(args, filter.City)
	}
	if filter.Region != "" {
		where = append(where, "region = ?")
		args = append(args, strings.ToUpper(filter.Region))
	}
	if filter.MinPrice != nil {
		where = append(where, "CAST(price_per_day AS REAL) >= ?")
		args = append(args, filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		where = append(where, "CAST(price_per_day AS REAL) <= ?")
		args = append(args, filter.MaxPrice.InexactFloat64())
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count equipment: %w", err)
	}

	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE ` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	items, err := collectEquipment(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (db *DB) ListEquipmentByOwner(ctx context.Context, ownerID int64) ([]*models.Equipment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner equipment: %w", err)
	}
	defer rows.Close()
	return collectEquipment(rows)
}

func collectEquipment(rows *sql.Rows) ([]*models.Equipment, error) {
	var items []*models.Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		items = append(items, eq)
	}
	return items, rows.Err()
}

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var eq models.Equipment
	err := row.Scan(
		&eq.ID, &eq.OwnerID, &eq.Title, &eq.Description, &eq.Category, &eq.PricePerDay,
		&eq.City, &eq.Region, &eq.Address, &eq.Image, &eq.Available, &eq.CreatedAt, &eq.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &eq, nil
}

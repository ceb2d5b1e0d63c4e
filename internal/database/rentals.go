package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const rentalColumns = `id, equipment_id, renter_id, owner_id, start_date, end_date, total_price, status,
	requested_at, responded_at, owner_note, renter_note, updated_at, version`

// overlapQuery counts active rentals whose range intersects [start, end).
// Dates are stored as YYYY-MM-DD so string comparison follows calendar order.
const overlapQuery = `SELECT COUNT(*) FROM rentals
	WHERE equipment_id = ? AND id <> ? AND status IN (?, ?)
	AND start_date < ? AND ? < end_date`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countOverlaps(ctx context.Context, q queryRower, equipmentID, excludeID int64, period models.DateRange) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, overlapQuery,
		equipmentID, excludeID, models.RentalAccepted, models.RentalInProgress,
		period.End.Format(models.DateLayout), period.Start.Format(models.DateLayout),
	).Scan(&count)
	return count, err
}

// HasConflict reports whether an Accepted or InProgress rental overlaps the period.
func (db *DB) HasConflict(ctx context.Context, equipmentID int64, period models.DateRange) (bool, error) {
	count, err := countOverlaps(ctx, db, equipmentID, 0, period)
	if err != nil {
		return false, fmt.Errorf("failed to check rental conflicts: %w", err)
	}
	return count > 0, nil
}

// CreateRentalWithLock runs the overlap check and the insert in one write transaction.
func (db *DB) CreateRentalWithLock(ctx context.Context, rental *models.Rental) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	count, err := countOverlaps(ctx, tx, rental.EquipmentID, 0, rental.Period())
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if count > 0 {
		return ErrRentalConflict
	}

	now := time.Now().UTC()
	if rental.RequestedAt.IsZero() {
		rental.RequestedAt = now
	}
	result, err := tx.ExecContext(ctx, `INSERT INTO rentals (
				equipment_id, renter_id, owner_id, start_date, end_date, total_price, status,
				requested_at, responded_at, owner_note, renter_note, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rental.EquipmentID,
		rental.RenterID,
		rental.OwnerID,
		rental.StartDate.Format(models.DateLayout),
		rental.EndDate.Format(models.DateLayout),
		rental.TotalPrice.String(),
		rental.Status,
		rental.RequestedAt,
		nullTime(rental.RespondedAt),
		nullString(rental.OwnerNote),
		nullString(rental.RenterNote),
		now,
		1,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("rental references: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to insert rental in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rental: %w", err)
	}

	rental.ID = id
	rental.UpdatedAt = now
	rental.Version = 1
	return nil
}

func (db *DB) GetRental(ctx context.Context, id int64) (*models.Rental, error) {
	row := db.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = ?`, id)
	rental, err := scanRental(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get rental %d: %w", id, err)
	}
	return rental, nil
}

// ListRentals returns the user's rentals, newest request first.
func (db *DB) ListRentals(ctx context.Context, filter models.RentalFilter) ([]*models.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE `
	var args []any
	switch filter.Role {
	case models.RoleRenter:
		query += `renter_id = ?`
		args = append(args, filter.UserID)
	case models.RoleOwner:
		query += `owner_id = ?`
		args = append(args, filter.UserID)
	default:
		query += `(renter_id = ? OR owner_id = ?)`
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY requested_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	defer rows.Close()

	var rentals []*models.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

// UpdateRentalStatusWithVersion persists a transition from `from` to rental.Status.
// The row must still carry the expected version and status.
func (db *DB) UpdateRentalStatusWithVersion(ctx context.Context, rental *models.Rental, from models.RentalStatus) error {
	now := time.Now().UTC()
	if err := updateRental(ctx, db, rental, from, now); err != nil {
		return err
	}
	rental.Version++
	rental.UpdatedAt = now
	return nil
}

// AcceptRentalWithLock re-checks availability and flips the rental to Accepted atomically,
// so two overlapping Pending requests can never both become active.
func (db *DB) AcceptRentalWithLock(ctx context.Context, rental *models.Rental) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	count, err := countOverlaps(ctx, tx, rental.EquipmentID, rental.ID, rental.Period())
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if count > 0 {
		return ErrRentalConflict
	}

	now := time.Now().UTC()
	if err := updateRental(ctx, tx, rental, models.RentalPending, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit acceptance: %w", err)
	}

	rental.Version++
	rental.UpdatedAt = now
	return nil
}

// CompleteRentalWithReturn marks the rental Completed and the equipment available in one transaction.
func (db *DB) CompleteRentalWithReturn(ctx context.Context, rental *models.Rental) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if err := updateRental(ctx, tx, rental, models.RentalInProgress, now); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `UPDATE equipment SET available = 1, updated_at = ? WHERE id = ?`, now, rental.EquipmentID)
	if err != nil {
		return fmt.Errorf("failed to release equipment in tx: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("equipment %d: %w", rental.EquipmentID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit return: %w", err)
	}

	rental.Version++
	rental.UpdatedAt = now
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateRental(ctx context.Context, ex execer, rental *models.Rental, from models.RentalStatus, now time.Time) error {
	result, err := ex.ExecContext(ctx, `UPDATE rentals SET
				status = ?, responded_at = ?, owner_note = ?, renter_note = ?,
				updated_at = ?, version = version + 1
			WHERE id = ? AND version = ? AND status = ?`,
		rental.Status,
		nullTime(rental.RespondedAt),
		nullString(rental.OwnerNote),
		nullString(rental.RenterNote),
		now,
		rental.ID,
		rental.Version,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to update rental status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func scanRental(row rowScanner) (*models.Rental, error) {
	var (
		r                     models.Rental
		startStr, endStr      string
		respondedAt           sql.NullTime
		ownerNote, renterNote sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.EquipmentID, &r.RenterID, &r.OwnerID, &startStr, &endStr, &r.TotalPrice, &r.Status,
		&r.RequestedAt, &respondedAt, &ownerNote, &renterNote, &r.UpdatedAt, &r.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if r.StartDate, err = models.ParseDate(startStr); err != nil {
		return nil, fmt.Errorf("failed to parse rental start date %s: %w", startStr, err)
	}
	if r.EndDate, err = models.ParseDate(endStr); err != nil {
		return nil, fmt.Errorf("failed to parse rental end date %s: %w", endStr, err)
	}
	r.RespondedAt = timePtr(respondedAt)
	r.OwnerNote = stringPtr(ownerNote)
	r.RenterNote = stringPtr(renterNote)
	return &r, nil
}

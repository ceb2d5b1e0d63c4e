package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const reviewColumns = `id, rental_id, equipment_id, reviewer_id, reviewee_id, rating, comment, kind, created_at`

// CreateReview relies on the unique rental_id column for the one-review slot.
func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `INSERT INTO reviews (
				rental_id, equipment_id, reviewer_id, reviewee_id, rating, comment, kind, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		review.RentalID, review.EquipmentID, review.ReviewerID, review.RevieweeID,
		review.Rating, nullString(review.Comment), review.Kind, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	review.ID = id
	review.CreatedAt = now
	return nil
}

func (db *DB) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id)
	review, err := scanReview(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get review %d: %w", id, err)
	}
	return review, nil
}

func (db *DB) HasReview(ctx context.Context, rentalID int64) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE rental_id = ?`, rentalID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return count > 0, nil
}

func (db *DB) DeleteReview(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEquipmentReviews returns Equipment-kind reviews of a listing, newest first.
func (db *DB) ListEquipmentReviews(ctx context.Context, equipmentID int64) ([]*models.Review, error) {
	return db.listReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE equipment_id = ? AND kind = ? ORDER BY created_at DESC, id DESC`,
		equipmentID, models.ReviewEquipment)
}

// ListUserReviews returns reviews where the user is the reviewee, newest first.
func (db *DB) ListUserReviews(ctx context.Context, userID int64) ([]*models.Review, error) {
	return db.listReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE reviewee_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
}

func (db *DB) EquipmentRating(ctx context.Context, equipmentID int64) (models.RatingSummary, error) {
	return db.ratingSummary(ctx,
		`SELECT AVG(rating), COUNT(*) FROM reviews WHERE equipment_id = ? AND kind = ?`,
		equipmentID, models.ReviewEquipment)
}

func (db *DB) UserRating(ctx context.Context, userID int64) (models.RatingSummary, error) {
	return db.ratingSummary(ctx, `SELECT AVG(rating), COUNT(*) FROM reviews WHERE reviewee_id = ?`, userID)
}

// ratingSummary leaves Average nil when there are no rows; AVG yields NULL then.
func (db *DB) ratingSummary(ctx context.Context, query string, args ...any) (models.RatingSummary, error) {
	var (
		avg     sql.NullFloat64
		summary models.RatingSummary
	)
	if err := db.QueryRowContext(ctx, query, args...).Scan(&avg, &summary.Count); err != nil {
		return models.RatingSummary{}, fmt.Errorf("failed to compute rating: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		summary.Average = &v
	}
	return summary, nil
}

func (db *DB) listReviews(ctx context.Context, query string, args ...any) ([]*models.Review, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func scanReview(row rowScanner) (*models.Review, error) {
	var (
		r       models.Review
		comment sql.NullString
	)
	err := row.Scan(&r.ID, &r.RentalID, &r.EquipmentID, &r.ReviewerID, &r.RevieweeID,
		&r.Rating, &comment, &r.Kind, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Comment = stringPtr(comment)
	return &r, nil
}

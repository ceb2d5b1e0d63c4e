package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const transactionColumns = `t.id, t.rental_id, t.amount, t.status, t.provider_reference, t.payment_method,
	t.details, t.created_at, t.updated_at, t.version`

// CreateTransaction inserts a payment attempt unless the rental is already paid.
func (db *DB) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var approved int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE rental_id = ? AND status = ?`,
		txn.RentalID, models.TransactionApproved,
	).Scan(&approved)
	if err != nil {
		return fmt.Errorf("failed to check approved payments in tx: %w", err)
	}
	if approved > 0 {
		return ErrAlreadyPaid
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `INSERT INTO transactions (
				rental_id, amount, status, provider_reference, payment_method, details,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.RentalID,
		txn.Amount.String(),
		txn.Status,
		nullString(txn.ProviderReference),
		nullString(txn.PaymentMethod),
		nullString(txn.Details),
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider reference already used: %w", ErrConcurrentModification)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("rental %d: %w", txn.RentalID, ErrNotFound)
		}
		return fmt.Errorf("failed to insert transaction in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	txn.ID = id
	txn.CreatedAt = now
	txn.UpdatedAt = now
	txn.Version = 1
	return nil
}

func (db *DB) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	row := db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return txn, nil
}

func (db *DB) GetTransactionByProviderReference(ctx context.Context, reference string) (*models.Transaction, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.provider_reference = ?`, reference)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by provider reference: %w", err)
	}
	return txn, nil
}

func (db *DB) HasApprovedTransaction(ctx context.Context, rentalID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE rental_id = ? AND status = ?`,
		rentalID, models.TransactionApproved,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check approved payments: %w", err)
	}
	return count > 0, nil
}

// ListTransactionsForUser returns transactions on rentals where the user is renter or owner.
func (db *DB) ListTransactionsForUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+transactionColumns+`
			FROM transactions t
			JOIN rentals r ON r.id = t.rental_id
			WHERE r.renter_id = ? OR r.owner_id = ?
			ORDER BY t.created_at DESC, t.id DESC`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// UpdateTransactionStatusWithVersion stores txn.Status guarded by the version column.
// A second approval for the same rental violates the partial unique index.
func (db *DB) UpdateTransactionStatusWithVersion(ctx context.Context, txn *models.Transaction) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `UPDATE transactions SET
				status = ?, payment_method = ?, details = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
		txn.Status, nullString(txn.PaymentMethod), nullString(txn.Details), now, txn.ID, txn.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyPaid
		}
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}
	txn.Version++
	txn.UpdatedAt = now
	return nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                          models.Transaction
		reference, method, details sql.NullString
	)
	err := row.Scan(&t.ID, &t.RentalID, &t.Amount, &t.Status, &reference, &method, &details,
		&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ProviderReference = stringPtr(reference)
	t.PaymentMethod = stringPtr(method)
	t.Details = stringPtr(details)
	return &t, nil
}

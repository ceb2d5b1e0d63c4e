package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO messages (rental_id, sender_id, content, sent_at, is_read, read_at) VALUES (?, ?, ?, ?, 0, NULL)`,
		msg.RentalID, msg.SenderID, msg.Content, msg.SentAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("message references: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	msg.ID = id
	msg.Read = false
	msg.ReadAt = nil
	return nil
}

// ListMessagesAndMarkRead marks the counterparty's unread messages as read by readerID
// and returns the whole thread in send order.
func (db *DB) ListMessagesAndMarkRead(ctx context.Context, rentalID, readerID int64, readAt time.Time) ([]*models.Message, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET is_read = 1, read_at = ? WHERE rental_id = ? AND sender_id <> ? AND is_read = 0`,
		readAt, rentalID, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, rental_id, sender_id, content, sent_at, is_read, read_at
			FROM messages WHERE rental_id = ? ORDER BY sent_at ASC, id ASC`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var messages []*models.Message
	for rows.Next() {
		var (
			m      models.Message
			readTS sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.RentalID, &m.SenderID, &m.Content, &m.SentAt, &m.Read, &readTS); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.ReadAt = timePtr(readTS)
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read marks: %w", err)
	}
	return messages, nil
}

// CountUnread counts unread messages addressed to the user across all their rentals.
func (db *DB) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*)
			FROM messages m
			JOIN rentals r ON r.id = m.rental_id
			WHERE (r.renter_id = ? OR r.owner_id = ?) AND m.sender_id <> ? AND m.is_read = 0`,
		userID, userID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the sqlite handle used by every repository method.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every in-memory connection is a separate database
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("database initialized")
	}
	return db, nil
}

// NewFromSQL wraps an existing handle without running migrations.
func NewFromSQL(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

// dsn enables foreign keys, waits on locks and takes the write lock
// at BEGIN so that check-then-insert transactions serialize.
func dsn(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT,
            telegram_chat_id INTEGER,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS equipment (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL,
            price_per_day TEXT NOT NULL,
            city TEXT NOT NULL,
            region TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            image TEXT NOT NULL DEFAULT '',
            available BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rentals (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            equipment_id INTEGER NOT NULL REFERENCES equipment(id) ON DELETE RESTRICT,
            renter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            total_price TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','accepted','rejected','in_progress','completed','cancelled')),
            requested_at DATETIME NOT NULL,
            responded_at DATETIME,
            owner_note TEXT,
            renter_note TEXT,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (start_date < end_date),
            CHECK (renter_id <> owner_id)
        )`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            rental_id INTEGER NOT NULL REFERENCES rentals(id) ON DELETE RESTRICT,
            amount TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','approved','rejected','cancelled','refunded')),
            provider_reference TEXT,
            payment_method TEXT,
            details TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS reviews (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            rental_id INTEGER NOT NULL UNIQUE REFERENCES rentals(id) ON DELETE RESTRICT,
            equipment_id INTEGER NOT NULL REFERENCES equipment(id) ON DELETE RESTRICT,
            reviewer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            reviewee_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
            comment TEXT,
            kind TEXT NOT NULL CHECK (kind IN ('equipment','counterparty')),
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS messages (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            rental_id INTEGER NOT NULL REFERENCES rentals(id) ON DELETE CASCADE,
            sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            content TEXT NOT NULL,
            sent_at DATETIME NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT 0,
            read_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_equipment_owner ON equipment(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_equipment_available ON equipment(available, category, city, region)`,

		`CREATE INDEX IF NOT EXISTS idx_rentals_status ON rentals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_equipment_dates ON rentals(equipment_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_renter ON rentals(renter_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_owner ON rentals(owner_id)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_provider_ref ON transactions(provider_reference)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_one_approved ON transactions(rental_id) WHERE status = 'approved'`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_rental ON transactions(rental_id)`,

		`CREATE INDEX IF NOT EXISTS idx_reviews_equipment ON reviews(equipment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_reviewee ON reviews(reviewee_id)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_rental ON messages(rental_id, sent_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// nullString maps empty pointers to NULL.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

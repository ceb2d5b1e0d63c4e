package database

import (
	"context"
	"io"
	"testing"
	"time"

	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createTestEquipment(t *testing.T, db *DB, ownerID int64, price string) *models.Equipment {
	t.Helper()
	eq := &models.Equipment{
		OwnerID:     ownerID,
		Title:       "Drill",
		Description: "Cordless hammer drill",
		Category:    "tools",
		PricePerDay: decimal.RequireFromString(price),
		City:        "Curitiba",
		Region:      "PR",
		Available:   true,
	}
	require.NoError(t, db.CreateEquipment(context.Background(), eq))
	return eq
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTestRental(t *testing.T, eq *models.Equipment, renterID int64, start, end string, status models.RentalStatus) *models.Rental {
	t.Helper()
	period := models.NewDateRange(mustDate(t, start), mustDate(t, end))
	return &models.Rental{
		EquipmentID: eq.ID,
		RenterID:    renterID,
		OwnerID:     eq.OwnerID,
		StartDate:   period.Start,
		EndDate:     period.End,
		TotalPrice:  eq.PriceFor(period),
		Status:      status,
	}
}

func TestNewDB_Schema(t *testing.T) {
	db := setupTestDB(t)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	require.Equal(t, 1, fk)

	for _, table := range []string{"users", "equipment", "rentals", "transactions", "reviews", "messages"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestNewDB_FileIsReopenable(t *testing.T) {
	logger := zerolog.New(io.Discard)
	path := t.TempDir() + "/nested/app.db"

	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	createTestUser(t, db, "a@example.com")
	require.NoError(t, db.Close())

	db, err = NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
}

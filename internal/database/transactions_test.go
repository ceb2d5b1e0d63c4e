package database

import (
	"context"
	"testing"

	"rentalhub/internal/models"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	owner, renter *models.User
	equipment     *models.Equipment
	rental        *models.Rental
}

func setupPaymentFixture(t *testing.T, db *DB) paymentFixture {
	t.Helper()
	f := paymentFixture{
		owner:  createTestUser(t, db, "owner@example.com"),
		renter: createTestUser(t, db, "renter@example.com"),
	}
	f.equipment = createTestEquipment(t, db, f.owner.ID, "75.50")
	f.rental = newTestRental(t, f.equipment, f.renter.ID, "2030-02-01", "2030-02-03", models.RentalAccepted)
	require.NoError(t, db.CreateRentalWithLock(context.Background(), f.rental))
	return f
}

func newTestTransaction(rental *models.Rental, reference string) *models.Transaction {
	return &models.Transaction{
		RentalID:          rental.ID,
		Amount:            rental.TotalPrice,
		Status:            models.TransactionPending,
		ProviderReference: lo.ToPtr(reference),
	}
}

func TestCreateTransaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := setupPaymentFixture(t, db)

	txn := newTestTransaction(f.rental, "MP-1")
	require.NoError(t, db.CreateTransaction(ctx, txn))
	assert.NotZero(t, txn.ID)
	assert.Equal(t, int64(1), txn.Version)

	stored, err := db.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, f.rental.TotalPrice.Equal(stored.Amount))
	assert.Equal(t, models.TransactionPending, stored.Status)
	require.NotNil(t, stored.ProviderReference)
	assert.Equal(t, "MP-1", *stored.ProviderReference)

	byRef, err := db.GetTransactionByProviderReference(ctx, "MP-1")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, byRef.ID)

	_, err = db.GetTransactionByProviderReference(ctx, "MP-unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("DuplicateReference", func(t *testing.T) {
		err := db.CreateTransaction(ctx, newTestTransaction(f.rental, "MP-1"))
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("UnknownRental", func(t *testing.T) {
		err := db.CreateTransaction(ctx, &models.Transaction{RentalID: 999, Amount: f.rental.TotalPrice, Status: models.TransactionPending})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTransactionApproval(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := setupPaymentFixture(t, db)

	first := newTestTransaction(f.rental, "MP-a")
	second := newTestTransaction(f.rental, "MP-b")
	require.NoError(t, db.CreateTransaction(ctx, first))
	require.NoError(t, db.CreateTransaction(ctx, second))

	paid, err := db.HasApprovedTransaction(ctx, f.rental.ID)
	require.NoError(t, err)
	assert.False(t, paid)

	first.Status = models.TransactionApproved
	first.PaymentMethod = lo.ToPtr("pix")
	require.NoError(t, db.UpdateTransactionStatusWithVersion(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	paid, err = db.HasApprovedTransaction(ctx, f.rental.ID)
	require.NoError(t, err)
	assert.True(t, paid)

	t.Run("SecondApprovalRejected", func(t *testing.T) {
		second.Status = models.TransactionApproved
		assert.ErrorIs(t, db.UpdateTransactionStatusWithVersion(ctx, second), ErrAlreadyPaid)
	})

	t.Run("NewAttemptAfterApproval", func(t *testing.T) {
		assert.ErrorIs(t, db.CreateTransaction(ctx, newTestTransaction(f.rental, "MP-c")), ErrAlreadyPaid)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		stale := *first
		stale.Version = 1
		stale.Status = models.TransactionRefunded
		assert.ErrorIs(t, db.UpdateTransactionStatusWithVersion(ctx, &stale), ErrConcurrentModification)
	})

	t.Run("RefundFreesSlot", func(t *testing.T) {
		first.Status = models.TransactionRefunded
		require.NoError(t, db.UpdateTransactionStatusWithVersion(ctx, first))
		paid, err := db.HasApprovedTransaction(ctx, f.rental.ID)
		require.NoError(t, err)
		assert.False(t, paid)
	})
}

func TestListTransactionsForUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := setupPaymentFixture(t, db)
	stranger := createTestUser(t, db, "stranger@example.com")

	require.NoError(t, db.CreateTransaction(ctx, newTestTransaction(f.rental, "MP-1")))
	require.NoError(t, db.CreateTransaction(ctx, newTestTransaction(f.rental, "MP-2")))

	for _, user := range []*models.User{f.owner, f.renter} {
		list, err := db.ListTransactionsForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	}

	list, err := db.ListTransactionsForUser(ctx, stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

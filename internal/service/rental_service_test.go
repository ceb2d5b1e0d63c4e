package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"rentalhub/internal/database"
	"rentalhub/internal/events"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerID  int64 = 10
	renterID int64 = 20
	outsider int64 = 30
)

var fixedNow = time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2030, 1, d, 0, 0, 0, 0, time.UTC)
}

type rentalFixture struct {
	rentals *mockRentalRepo
	equip   *mockEquipmentRepo
	txns    *mockTransactionRepo
	bus     *mockEventBus
	svc     *RentalService
}

func newRentalFixture(t *testing.T) *rentalFixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	f := &rentalFixture{
		rentals: new(mockRentalRepo),
		equip:   new(mockEquipmentRepo),
		txns:    new(mockTransactionRepo),
		bus:     new(mockEventBus),
	}
	f.svc = NewRentalService(f.rentals, f.equip, f.txns, f.bus, 30, &logger)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

// expectTitle covers the listing lookup done when a transition event is published.
func (f *rentalFixture) expectTitle() {
	f.equip.On("GetEquipment", mock.Anything, int64(1)).Return(testEquipment(), nil).Once()
}

func testEquipment() *models.Equipment {
	return &models.Equipment{
		ID:          1,
		OwnerID:     ownerID,
		Title:       "Concrete mixer",
		PricePerDay: decimal.RequireFromString("100.00"),
		Available:   true,
	}
}

func testRental(status models.RentalStatus) *models.Rental {
	return &models.Rental{
		ID:          5,
		EquipmentID: 1,
		RenterID:    renterID,
		OwnerID:     ownerID,
		StartDate:   day(2),
		EndDate:     day(5),
		TotalPrice:  decimal.RequireFromString("300.00"),
		Status:      status,
		Version:     1,
	}
}

func withStatus(status models.RentalStatus) interface{} {
	return mock.MatchedBy(func(r *models.Rental) bool { return r.Status == status })
}

func TestRentalService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newRentalFixture(t)
		period := models.NewDateRange(day(2), day(5))
		f.equip.On("GetEquipment", ctx, int64(1)).Return(testEquipment(), nil).Once()
		f.rentals.On("HasConflict", ctx, int64(1), period).Return(false, nil).Once()
		f.rentals.On("CreateRentalWithLock", ctx, mock.AnythingOfType("*models.Rental")).
			Run(func(args mock.Arguments) { args.Get(1).(*models.Rental).ID = 99 }).
			Return(nil).Once()
		f.bus.On("PublishJSON", events.EventRentalRequested, mock.Anything).Return(nil).Once()

		rental, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5), Note: " weekend job "})
		require.NoError(t, err)
		assert.Equal(t, int64(99), rental.ID)
		assert.Equal(t, models.RentalPending, rental.Status)
		assert.True(t, decimal.RequireFromString("300").Equal(rental.TotalPrice))
		assert.Equal(t, ownerID, rental.OwnerID)
		require.NotNil(t, rental.RenterNote)
		assert.Equal(t, "weekend job", *rental.RenterNote)

		f.rentals.AssertExpectations(t)
		f.bus.AssertExpectations(t)
	})

	t.Run("StartTodayAllowed", func(t *testing.T) {
		f := newRentalFixture(t)
		f.equip.On("GetEquipment", ctx, int64(1)).Return(testEquipment(), nil).Once()
		f.rentals.On("HasConflict", ctx, int64(1), mock.Anything).Return(false, nil).Once()
		f.rentals.On("CreateRentalWithLock", ctx, mock.Anything).Return(nil).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: fixedNow, End: day(2)})
		assert.NoError(t, err)
	})

	invalid := []struct {
		name string
		req  CreateRentalRequest
	}{
		{"EndBeforeStart", CreateRentalRequest{EquipmentID: 1, Start: day(5), End: day(2)}},
		{"EndEqualsStart", CreateRentalRequest{EquipmentID: 1, Start: day(5), End: day(5)}},
		{"StartInPast", CreateRentalRequest{EquipmentID: 1, Start: day(1).AddDate(0, 0, -1), End: day(3)}},
		{"TooLong", CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(2).AddDate(0, 0, 31)}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			f := newRentalFixture(t)
			_, err := f.svc.Create(ctx, renterID, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
			f.equip.AssertNotCalled(t, "GetEquipment", mock.Anything, mock.Anything)
		})
	}

	t.Run("Unauthenticated", func(t *testing.T) {
		f := newRentalFixture(t)
		_, err := f.svc.Create(ctx, 0, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("OwnEquipment", func(t *testing.T) {
		f := newRentalFixture(t)
		f.equip.On("GetEquipment", ctx, int64(1)).Return(testEquipment(), nil).Once()
		_, err := f.svc.Create(ctx, ownerID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("EquipmentUnavailable", func(t *testing.T) {
		f := newRentalFixture(t)
		eq := testEquipment()
		eq.Available = false
		f.equip.On("GetEquipment", ctx, int64(1)).Return(eq, nil).Once()
		_, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("EquipmentMissing", func(t *testing.T) {
		f := newRentalFixture(t)
		f.equip.On("GetEquipment", ctx, int64(1)).Return(nil, database.ErrNotFound).Once()
		_, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Overlap", func(t *testing.T) {
		f := newRentalFixture(t)
		f.equip.On("GetEquipment", ctx, int64(1)).Return(testEquipment(), nil).Once()
		f.rentals.On("HasConflict", ctx, int64(1), mock.Anything).Return(true, nil).Once()
		_, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, database.ErrRentalConflict)
		f.rentals.AssertNotCalled(t, "CreateRentalWithLock", mock.Anything, mock.Anything)
	})

	t.Run("OverlapInsideLock", func(t *testing.T) {
		f := newRentalFixture(t)
		f.equip.On("GetEquipment", ctx, int64(1)).Return(testEquipment(), nil).Once()
		f.rentals.On("HasConflict", ctx, int64(1), mock.Anything).Return(false, nil).Once()
		f.rentals.On("CreateRentalWithLock", ctx, mock.Anything).Return(database.ErrRentalConflict).Once()
		_, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.ErrorIs(t, err, database.ErrRentalConflict)
		f.bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("PublishFailureIgnored", func(t *testing.T) {
		f := newRentalFixture(t)
		f.equip.On("GetEquipment", ctx, int64(1)).Return(testEquipment(), nil).Once()
		f.rentals.On("HasConflict", ctx, int64(1), mock.Anything).Return(false, nil).Once()
		f.rentals.On("CreateRentalWithLock", ctx, mock.Anything).Return(nil).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(errors.New("bus down")).Once()

		_, err := f.svc.Create(ctx, renterID, CreateRentalRequest{EquipmentID: 1, Start: day(2), End: day(5)})
		assert.NoError(t, err)
	})
}

func TestRentalService_OwnerTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("Accept", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		f.rentals.On("AcceptRentalWithLock", ctx, withStatus(models.RentalAccepted)).Return(nil).Once()
		f.expectTitle()
		f.bus.On("PublishJSON", events.EventRentalAccepted, mock.MatchedBy(func(p events.RentalEventPayload) bool {
			return p.EquipmentTitle == "Concrete mixer" && p.ActorID == ownerID
		})).Return(nil).Once()

		rental, err := f.svc.Accept(ctx, ownerID, 5)
		require.NoError(t, err)
		assert.Equal(t, models.RentalAccepted, rental.Status)
		require.NotNil(t, rental.RespondedAt)
		assert.Equal(t, fixedNow, *rental.RespondedAt)
	})

	t.Run("AcceptByRenterForbidden", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		_, err := f.svc.Accept(ctx, renterID, 5)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("AcceptByOutsiderForbidden", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		_, err := f.svc.Accept(ctx, outsider, 5)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("AcceptNotPending", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalAccepted), nil).Once()
		_, err := f.svc.Accept(ctx, ownerID, 5)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("AcceptOverlapAtAcceptance", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		f.rentals.On("AcceptRentalWithLock", ctx, mock.Anything).Return(database.ErrRentalConflict).Once()
		_, err := f.svc.Accept(ctx, ownerID, 5)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("AcceptMissing", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(404)).Return(nil, database.ErrNotFound).Once()
		_, err := f.svc.Accept(ctx, ownerID, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RejectStoresNote", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		f.rentals.On("UpdateRentalStatusWithVersion", ctx, withStatus(models.RentalRejected), models.RentalPending).Return(nil).Once()
		f.expectTitle()
		f.bus.On("PublishJSON", events.EventRentalRejected, mock.Anything).Return(nil).Once()

		rental, err := f.svc.Reject(ctx, ownerID, 5, "in maintenance")
		require.NoError(t, err)
		require.NotNil(t, rental.OwnerNote)
		assert.Equal(t, "in maintenance", *rental.OwnerNote)
		assert.NotNil(t, rental.RespondedAt)
	})

	t.Run("StaleWrite", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		f.rentals.On("UpdateRentalStatusWithVersion", ctx, mock.Anything, models.RentalPending).
			Return(database.ErrConcurrentModification).Once()
		_, err := f.svc.Reject(ctx, ownerID, 5, "")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("ConfirmReturnRequiresInProgress", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalAccepted), nil).Once()
		_, err := f.svc.ConfirmReturn(ctx, ownerID, 5)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("ConfirmReturnReleasesEquipment", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalInProgress), nil).Once()
		f.rentals.On("CompleteRentalWithReturn", ctx, withStatus(models.RentalCompleted)).Return(nil).Once()
		f.expectTitle()
		f.bus.On("PublishJSON", events.EventRentalReturned, mock.Anything).Return(nil).Once()

		rental, err := f.svc.ConfirmReturn(ctx, ownerID, 5)
		require.NoError(t, err)
		assert.Equal(t, models.RentalCompleted, rental.Status)
		f.rentals.AssertNotCalled(t, "UpdateRentalStatusWithVersion", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ConcludeLeavesEquipmentAlone", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalInProgress), nil).Once()
		f.rentals.On("UpdateRentalStatusWithVersion", ctx, withStatus(models.RentalCompleted), models.RentalInProgress).Return(nil).Once()
		f.expectTitle()
		f.bus.On("PublishJSON", events.EventRentalCompleted, mock.Anything).Return(nil).Once()

		_, err := f.svc.Conclude(ctx, ownerID, 5)
		require.NoError(t, err)
		f.rentals.AssertNotCalled(t, "CompleteRentalWithReturn", mock.Anything, mock.Anything)
	})

	t.Run("ConcludeByRenterForbidden", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalInProgress), nil).Once()
		_, err := f.svc.Conclude(ctx, renterID, 5)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestRentalService_Cancel(t *testing.T) {
	ctx := context.Background()

	allowed := []struct {
		status models.RentalStatus
		actor  int64
	}{
		{models.RentalPending, renterID},
		{models.RentalPending, ownerID},
		{models.RentalAccepted, renterID},
		{models.RentalAccepted, ownerID},
	}
	for _, tc := range allowed {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newRentalFixture(t)
			f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(tc.status), nil).Once()
			f.rentals.On("UpdateRentalStatusWithVersion", ctx, withStatus(models.RentalCancelled), tc.status).Return(nil).Once()
			f.expectTitle()
			f.bus.On("PublishJSON", events.EventRentalCancelled, mock.Anything).Return(nil).Once()

			rental, err := f.svc.Cancel(ctx, tc.actor, 5, "plans changed")
			require.NoError(t, err)
			assert.Equal(t, models.RentalCancelled, rental.Status)
			if tc.actor == ownerID {
				assert.NotNil(t, rental.OwnerNote)
			} else {
				assert.NotNil(t, rental.RenterNote)
			}
		})
	}

	for _, status := range []models.RentalStatus{models.RentalInProgress, models.RentalCompleted, models.RentalCancelled, models.RentalRejected} {
		t.Run("Refused_"+string(status), func(t *testing.T) {
			f := newRentalFixture(t)
			f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(status), nil).Once()
			_, err := f.svc.Cancel(ctx, renterID, 5, "")
			assert.ErrorIs(t, err, ErrConflict)
		})
	}

	t.Run("Outsider", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		_, err := f.svc.Cancel(ctx, outsider, 5, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestRentalService_MarkInProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresApprovedPayment", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalAccepted), nil).Once()
		f.txns.On("HasApprovedTransaction", ctx, int64(5)).Return(false, nil).Once()
		_, err := f.svc.MarkInProgress(ctx, 5)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("Activates", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalAccepted), nil).Once()
		f.txns.On("HasApprovedTransaction", ctx, int64(5)).Return(true, nil).Once()
		f.rentals.On("UpdateRentalStatusWithVersion", ctx, withStatus(models.RentalInProgress), models.RentalAccepted).Return(nil).Once()
		f.expectTitle()
		f.bus.On("PublishJSON", events.EventRentalInProgress, mock.Anything).Return(nil).Once()

		rental, err := f.svc.MarkInProgress(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, models.RentalInProgress, rental.Status)
	})

	t.Run("AlreadyInProgressIsNoop", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalInProgress), nil).Once()
		rental, err := f.svc.MarkInProgress(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, models.RentalInProgress, rental.Status)
		f.bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("PendingRefused", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		_, err := f.svc.MarkInProgress(ctx, 5)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestRentalService_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("GetOutsiderForbidden", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("GetRental", ctx, int64(5)).Return(testRental(models.RentalPending), nil).Once()
		_, err := f.svc.Get(ctx, outsider, 5)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("ListDefaultsToAllRoles", func(t *testing.T) {
		f := newRentalFixture(t)
		f.rentals.On("ListRentals", ctx, models.RentalFilter{UserID: renterID, Role: models.RoleAll}).Return(nil, nil).Once()
		list, err := f.svc.List(ctx, renterID, "", nil)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("ListRejectsUnknownRole", func(t *testing.T) {
		f := newRentalFixture(t)
		_, err := f.svc.List(ctx, renterID, "landlord", nil)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

package service

import (
	"context"
	"time"

	"rentalhub/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRentalRepo struct {
	mock.Mock
}

func (m *mockRentalRepo) HasConflict(ctx context.Context, equipmentID int64, period models.DateRange) (bool, error) {
	args := m.Called(ctx, equipmentID, period)
	return args.Bool(0), args.Error(1)
}
func (m *mockRentalRepo) CreateRentalWithLock(ctx context.Context, r *models.Rental) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRentalRepo) GetRental(ctx context.Context, id int64) (*models.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so the service cannot mutate the fixture
	r := *args.Get(0).(*models.Rental)
	return &r, args.Error(1)
}
func (m *mockRentalRepo) ListRentals(ctx context.Context, f models.RentalFilter) ([]*models.Rental, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rental), args.Error(1)
}
func (m *mockRentalRepo) UpdateRentalStatusWithVersion(ctx context.Context, r *models.Rental, from models.RentalStatus) error {
	return m.Called(ctx, r, from).Error(0)
}
func (m *mockRentalRepo) AcceptRentalWithLock(ctx context.Context, r *models.Rental) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRentalRepo) CompleteRentalWithReturn(ctx context.Context, r *models.Rental) error {
	return m.Called(ctx, r).Error(0)
}

type mockEquipmentRepo struct {
	mock.Mock
}

func (m *mockEquipmentRepo) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	return m.Called(ctx, eq).Error(0)
}
func (m *mockEquipmentRepo) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	eq := *args.Get(0).(*models.Equipment)
	return &eq, args.Error(1)
}
func (m *mockEquipmentRepo) UpdateEquipment(ctx context.Context, eq *models.Equipment) error {
	return m.Called(ctx, eq).Error(0)
}
func (m *mockEquipmentRepo) SetEquipmentAvailability(ctx context.Context, id int64, available bool) error {
	return m.Called(ctx, id, available).Error(0)
}
func (m *mockEquipmentRepo) DeleteEquipment(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockEquipmentRepo) ListAvailableEquipment(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Equipment), args.Int(1), args.Error(2)
}
func (m *mockEquipmentRepo) ListEquipmentByOwner(ctx context.Context, ownerID int64) ([]*models.Equipment, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Equipment), args.Error(1)
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return m.Called(ctx, txn).Error(0)
}
func (m *mockTransactionRepo) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}
func (m *mockTransactionRepo) GetTransactionByProviderReference(ctx context.Context, ref string) (*models.Transaction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	txn := *args.Get(0).(*models.Transaction)
	return &txn, args.Error(1)
}
func (m *mockTransactionRepo) HasApprovedTransaction(ctx context.Context, rentalID int64) (bool, error) {
	args := m.Called(ctx, rentalID)
	return args.Bool(0), args.Error(1)
}
func (m *mockTransactionRepo) ListTransactionsForUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}
func (m *mockTransactionRepo) UpdateTransactionStatusWithVersion(ctx context.Context, txn *models.Transaction) error {
	return m.Called(ctx, txn).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockActivator struct {
	mock.Mock
}

func (m *mockActivator) MarkInProgress(ctx context.Context, rentalID int64) (*models.Rental, error) {
	args := m.Called(ctx, rentalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}

type mockQuota struct {
	mock.Mock
}

func (m *mockQuota) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

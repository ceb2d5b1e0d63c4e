package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/events"
	"rentalhub/internal/models"
	"rentalhub/internal/repository"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stack wires every service over one in-memory database, the way cmd/api does.
type stack struct {
	db        *database.DB
	bus       *events.EventBus
	users     *UserService
	equipment *EquipmentService
	rentals   *RentalService
	payments  *PaymentService
	reviews   *ReviewService
	messages  *MessageService
	export    *ExportService

	mu   sync.Mutex
	seen []string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &stack{db: db, bus: events.NewEventBus()}
	for _, eventType := range events.AllEventTypes {
		s.bus.Subscribe(eventType, func(e *events.Event) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.seen = append(s.seen, e.Type)
			return nil
		})
	}

	s.users = NewUserService(db, db, &logger)
	s.equipment = NewEquipmentService(db, &logger)
	s.rentals = NewRentalService(db, db, db, s.bus, 30, &logger)
	s.rentals.now = func() time.Time { return time.Date(2029, 12, 1, 9, 0, 0, 0, time.UTC) }
	s.payments = NewPaymentService(db, db, s.rentals, nil, config.PaymentsConfig{}, s.bus, &logger)
	s.reviews = NewReviewService(db, db, db, db, &logger)
	s.messages = NewMessageService(db, db, repository.NewMemoryQuotaRepository(), s.bus, config.MessagingConfig{RateLimitMessages: 3, RateLimitWindow: 60}, &logger)
	s.export = NewExportService(db, db, &logger)
	return s
}

func (s *stack) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *stack) user(t *testing.T, name, email string) *models.User {
	t.Helper()
	u, err := s.users.Create(context.Background(), CreateUserRequest{Name: name, Email: email})
	require.NoError(t, err)
	return u
}

func (s *stack) listing(t *testing.T, ownerID int64, price string) *models.Equipment {
	t.Helper()
	eq, err := s.equipment.Create(context.Background(), ownerID, EquipmentInput{
		Title:       "Pressure washer",
		Category:    "cleaning",
		PricePerDay: decimal.RequireFromString(price),
		City:        "Porto Alegre",
		Region:      "rs",
	})
	require.NoError(t, err)
	return eq
}

// paidRental drives a rental to InProgress through a simulated approved callback.
func (s *stack) paidRental(t *testing.T, eq *models.Equipment, renterID int64, start, end time.Time) *models.Rental {
	t.Helper()
	ctx := context.Background()
	rental, err := s.rentals.Create(ctx, renterID, CreateRentalRequest{EquipmentID: eq.ID, Start: start, End: end})
	require.NoError(t, err)
	_, err = s.rentals.Accept(ctx, eq.OwnerID, rental.ID)
	require.NoError(t, err)
	txn, err := s.payments.Initiate(ctx, renterID, rental.ID)
	require.NoError(t, err)
	res, err := s.payments.HandleWebhook(ctx, WebhookNotification{Type: "payment", DataID: *txn.ProviderReference, Status: "approved"})
	require.NoError(t, err)
	require.True(t, res.Activated)
	rental, err = s.rentals.Get(ctx, renterID, rental.ID)
	require.NoError(t, err)
	return rental
}

func TestRentalFlow_EndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := s.user(t, "Olga", "olga@example.com")
	renter := s.user(t, "Rui", "rui@example.com")
	eq := s.listing(t, owner.ID, "100")
	assert.Equal(t, "RS", eq.Region)

	rental, err := s.rentals.Create(ctx, renter.ID, CreateRentalRequest{
		EquipmentID: eq.ID,
		Start:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2030, 1, 4, 0, 0, 0, 0, time.UTC),
		Note:        "weekend job",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RentalPending, rental.Status)
	assert.True(t, decimal.RequireFromString("300").Equal(rental.TotalPrice))

	rental, err = s.rentals.Accept(ctx, owner.ID, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalAccepted, rental.Status)
	require.NotNil(t, rental.RespondedAt)

	txn, err := s.payments.Initiate(ctx, renter.ID, rental.ID)
	require.NoError(t, err)
	assert.True(t, rental.TotalPrice.Equal(txn.Amount))

	res, err := s.payments.HandleWebhook(ctx, WebhookNotification{Type: "payment", Action: "payment.approved", DataID: *txn.ProviderReference})
	require.NoError(t, err)
	assert.True(t, res.Activated)

	rental, err = s.rentals.Get(ctx, owner.ID, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalInProgress, rental.Status)

	_, err = s.payments.Initiate(ctx, renter.ID, rental.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// the owner flips the listing off while the tool is out
	_, err = s.equipment.SetAvailability(ctx, owner.ID, eq.ID, false)
	require.NoError(t, err)

	rental, err = s.rentals.ConfirmReturn(ctx, owner.ID, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, rental.Status)

	stored, err := s.equipment.Get(ctx, eq.ID)
	require.NoError(t, err)
	assert.True(t, stored.Available)

	review, err := s.reviews.Create(ctx, renter.ID, CreateReviewRequest{RentalID: rental.ID, Kind: "equipment", Rating: 4, Comment: " solid "})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, review.RevieweeID)
	assert.Equal(t, "solid", *review.Comment)

	_, err = s.reviews.Create(ctx, owner.ID, CreateReviewRequest{RentalID: rental.ID, Kind: "counterparty", Rating: 5})
	assert.ErrorIs(t, err, ErrValidation)

	list, err := s.reviews.EquipmentReviews(ctx, eq.ID)
	require.NoError(t, err)
	require.Len(t, list.Reviews, 1)
	require.NotNil(t, list.Average)
	assert.InDelta(t, 4.0, *list.Average, 0.001)

	profile, err := s.users.Profile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Rating.Count)

	assert.Equal(t, []string{
		events.EventRentalRequested,
		events.EventRentalAccepted,
		events.EventRentalInProgress,
		events.EventPaymentUpdated,
		events.EventRentalReturned,
	}, s.events())
}

func TestRentalFlow_ConcludeKeepsAvailabilityFlag(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := s.user(t, "Olga", "olga@example.com")
	renter := s.user(t, "Rui", "rui@example.com")
	eq := s.listing(t, owner.ID, "50")

	rental := s.paidRental(t, eq, renter.ID, time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 2, 3, 0, 0, 0, 0, time.UTC))
	_, err := s.equipment.SetAvailability(ctx, owner.ID, eq.ID, false)
	require.NoError(t, err)

	rental, err = s.rentals.Conclude(ctx, owner.ID, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, rental.Status)

	stored, err := s.equipment.Get(ctx, eq.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available, "conclude must not release the listing")

	_, err = s.rentals.ConfirmReturn(ctx, owner.ID, rental.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRentalFlow_WebhookReplayIsIdempotent(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := s.user(t, "Olga", "olga@example.com")
	renter := s.user(t, "Rui", "rui@example.com")
	eq := s.listing(t, owner.ID, "80")

	rental := s.paidRental(t, eq, renter.ID, time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 3, 2, 0, 0, 0, 0, time.UTC))
	txns, err := s.payments.List(ctx, renter.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	ref := *txns[0].ProviderReference
	version := txns[0].Version

	for i := 0; i < 3; i++ {
		res, err := s.payments.HandleWebhook(ctx, WebhookNotification{Type: "payment", DataID: ref, Status: "approved"})
		require.NoError(t, err)
		assert.False(t, res.Activated)
	}

	txn, err := s.payments.Get(ctx, owner.ID, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, version, txn.Version)

	stored, err := s.rentals.Get(ctx, renter.ID, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalInProgress, stored.Status)
	assert.Equal(t, rental.Version, stored.Version)
}

func TestRentalFlow_ReapprovalAfterPendingActivatesOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := s.user(t, "Olga", "olga@example.com")
	renter := s.user(t, "Rui", "rui@example.com")
	eq := s.listing(t, owner.ID, "80")

	rental := s.paidRental(t, eq, renter.ID, time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 3, 3, 0, 0, 0, 0, time.UTC))
	txns, err := s.payments.List(ctx, renter.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	ref := *txns[0].ProviderReference

	res, err := s.payments.HandleWebhook(ctx, WebhookNotification{Type: "payment", DataID: ref, Status: "in_process"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, res.Transaction.Status)
	stored, err := s.payments.Get(ctx, renter.ID, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, stored.Status)

	_, err = s.payments.HandleWebhook(ctx, WebhookNotification{Type: "payment", DataID: ref, Status: "approved"})
	require.NoError(t, err)
	stored, err = s.payments.Get(ctx, renter.ID, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionApproved, stored.Status)

	inProgress := lo.Filter(s.events(), func(e string, _ int) bool { return e == events.EventRentalInProgress })
	assert.Len(t, inProgress, 1)

	after, err := s.rentals.Get(ctx, renter.ID, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalInProgress, after.Status)
	assert.Equal(t, rental.Version, after.Version)
}

func TestRentalFlow_PendingRequestsDoNotBlock(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := s.user(t, "Olga", "olga@example.com")
	first := s.user(t, "Rui", "rui@example.com")
	second := s.user(t, "Ana", "ana@example.com")
	eq := s.listing(t, owner.ID, "20")

	req := CreateRentalRequest{EquipmentID: eq.ID, Start: time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2030, 4, 5, 0, 0, 0, 0, time.UTC)}
	a, err := s.rentals.Create(ctx, first.ID, req)
	require.NoError(t, err)
	b, err := s.rentals.Create(ctx, second.ID, req)
	require.NoError(t, err)

	_, err = s.rentals.Accept(ctx, owner.ID, a.ID)
	require.NoError(t, err)

	// the second request now collides with an accepted rental
	_, err = s.rentals.Accept(ctx, owner.ID, b.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.rentals.Create(ctx, second.ID, req)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, database.ErrRentalConflict)

	conflict, err := s.rentals.Availability().HasConflict(ctx, eq.ID, models.NewDateRange(req.End, req.End.AddDate(0, 0, 2)))
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = s.rentals.Cancel(ctx, first.ID, a.ID, "plans changed")
	require.NoError(t, err)
	_, err = s.rentals.Accept(ctx, owner.ID, b.ID)
	assert.NoError(t, err)
}

func TestRentalFlow_EventPayload(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := s.user(t, "Olga", "olga@example.com")
	renter := s.user(t, "Rui", "rui@example.com")
	eq := s.listing(t, owner.ID, "10")

	var got events.RentalEventPayload
	s.bus.Subscribe(events.EventRentalRequested, func(e *events.Event) error {
		return json.Unmarshal(e.Payload, &got)
	})
	_, err := s.rentals.Create(ctx, renter.ID, CreateRentalRequest{EquipmentID: eq.ID, Start: time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2030, 5, 3, 0, 0, 0, 0, time.UTC), Note: "hi"})
	require.NoError(t, err)

	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, "Pressure washer", got.EquipmentTitle)
	assert.Equal(t, "2030-05-01", got.StartDate)
	assert.True(t, decimal.RequireFromString("20").Equal(got.TotalPrice))
	assert.Equal(t, "hi", got.Note)

	var accepted events.RentalEventPayload
	s.bus.Subscribe(events.EventRentalAccepted, func(e *events.Event) error {
		return json.Unmarshal(e.Payload, &accepted)
	})
	_, err = s.rentals.Accept(ctx, owner.ID, got.RentalID)
	require.NoError(t, err)
	assert.Equal(t, "Pressure washer", accepted.EquipmentTitle)
	assert.Equal(t, owner.ID, accepted.ActorID)
}

package service

import (
	"context"
	"errors"
	"strings"

	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const simulatedPaymentNote = "simulated payment: no provider integration configured"

// RentalActivator is the slice of the lifecycle the payment gate may drive.
type RentalActivator interface {
	MarkInProgress(ctx context.Context, rentalID int64) (*models.Rental, error)
}

// WebhookNotification is the provider callback body.
type WebhookNotification struct {
	Type   string
	Action string
	DataID string
	Status string
}

// ProviderStatus picks the explicit status, or the suffix of an action like "payment.approved".
func (n WebhookNotification) ProviderStatus() string {
	if status := strings.TrimSpace(n.Status); status != "" {
		return status
	}
	if i := strings.LastIndex(n.Action, "."); i >= 0 {
		return n.Action[i+1:]
	}
	return n.Action
}

// WebhookResult reports what a callback did.
type WebhookResult struct {
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Activated   bool                `json:"activated"`
}

type PaymentService struct {
	transactions domain.TransactionRepository
	rentals      domain.RentalRepository
	lifecycle    RentalActivator
	provider     domain.PaymentProvider
	cfg          config.PaymentsConfig
	eventBus     domain.EventPublisher
	logger       *zerolog.Logger
}

// NewPaymentService wires the payment gate. A nil provider runs in simulated mode:
// transactions get a synthetic reference and stay Pending until a callback arrives.
func NewPaymentService(
	transactions domain.TransactionRepository,
	rentals domain.RentalRepository,
	lifecycle RentalActivator,
	provider domain.PaymentProvider,
	cfg config.PaymentsConfig,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *PaymentService {
	if cfg.ProviderReferencePrefix == "" {
		cfg.ProviderReferencePrefix = "MP-"
	}
	return &PaymentService{
		transactions: transactions,
		rentals:      rentals,
		lifecycle:    lifecycle,
		provider:     provider,
		cfg:          cfg,
		eventBus:     eventBus,
		logger:       logger,
	}
}

func (s *PaymentService) Simulated() bool {
	return s.provider == nil
}

func (s *PaymentService) Initiate(ctx context.Context, actorID, rentalID int64) (*models.Transaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	rental, err := s.rentals.GetRental(ctx, rentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	if actorID != rental.RenterID {
		return nil, forbiddenError("only the renter can pay for a rental")
	}
	if rental.Status != models.RentalAccepted {
		return nil, conflictError("rental is %s, payment requires %s", rental.Status, models.RentalAccepted)
	}

	paid, err := s.transactions.HasApprovedTransaction(ctx, rental.ID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, conflictError("rental is already paid")
	}

	txn := &models.Transaction{
		RentalID: rental.ID,
		Amount:   rental.TotalPrice,
		Status:   models.TransactionPending,
	}
	if s.provider == nil {
		txn.ProviderReference = lo.ToPtr(s.cfg.ProviderReferencePrefix + uuid.NewString())
		txn.Details = lo.ToPtr(simulatedPaymentNote)
	} else {
		reference, err := s.provider.CreatePayment(ctx, rental, txn)
		if err != nil {
			return nil, err
		}
		txn.ProviderReference = &reference
	}

	if err := s.transactions.CreateTransaction(ctx, txn); err != nil {
		return nil, translateStorageError(err, "transaction")
	}

	s.logger.Info().
		Int64("transaction_id", txn.ID).
		Int64("rental_id", rental.ID).
		Str("amount", txn.Amount.StringFixed(2)).
		Bool("simulated", s.provider == nil).
		Msg("payment initiated")
	return txn, nil
}

// HandleWebhook applies a provider callback. Only the edge into Approved activates
// the rental; replays of the current status change nothing.
func (s *PaymentService) HandleWebhook(ctx context.Context, n WebhookNotification) (*WebhookResult, error) {
	if !strings.EqualFold(strings.TrimSpace(n.Type), "payment") {
		metrics.IncPaymentCallback("invalid")
		return nil, validationError("unsupported notification type %q", n.Type)
	}
	reference := strings.TrimSpace(n.DataID)
	if reference == "" {
		metrics.IncPaymentCallback("invalid")
		return nil, validationError("notification has no payment id")
	}

	txn, err := s.transactions.GetTransactionByProviderReference(ctx, reference)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncPaymentCallback("unknown")
		}
		return nil, translateStorageError(err, "payment")
	}

	next := models.MapProviderStatus(n.ProviderStatus())
	if next == txn.Status {
		metrics.IncPaymentCallback("replayed")
		return &WebhookResult{Transaction: txn}, nil
	}

	previous := txn.Status
	txn.Status = next
	if err := s.transactions.UpdateTransactionStatusWithVersion(ctx, txn); err != nil {
		metrics.IncPaymentCallback("failed")
		return nil, translateStorageError(err, "payment")
	}
	metrics.IncPaymentCallback("updated")

	result := &WebhookResult{Transaction: txn}
	logger := s.logger.With().
		Int64("transaction_id", txn.ID).
		Int64("rental_id", txn.RentalID).
		Str("from", string(previous)).
		Str("status", string(next)).
		Logger()
	logger.Info().Msg("payment status changed")

	if next == models.TransactionApproved && previous != models.TransactionApproved {
		if _, err := s.lifecycle.MarkInProgress(ctx, txn.RentalID); err != nil {
			// the payment stays recorded; the rental has to be reconciled by hand
			logger.Error().Err(err).Msg("failed to activate rental after approved payment")
		} else {
			result.Activated = true
		}
	}

	s.publish(ctx, txn)
	return result, nil
}

func (s *PaymentService) Get(ctx context.Context, actorID, transactionID int64) (*models.Transaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	txn, err := s.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, translateStorageError(err, "payment")
	}
	rental, err := s.rentals.GetRental(ctx, txn.RentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	if !rental.IsParty(actorID) {
		return nil, forbiddenError("not a party to this rental")
	}
	return txn, nil
}

func (s *PaymentService) List(ctx context.Context, actorID int64) ([]*models.Transaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	txns, err := s.transactions.ListTransactionsForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*models.Transaction{}
	}
	return txns, nil
}

func (s *PaymentService) publish(ctx context.Context, txn *models.Transaction) {
	if s.eventBus == nil {
		return
	}
	rental, err := s.rentals.GetRental(ctx, txn.RentalID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("rental_id", txn.RentalID).Msg("skip payment event: rental lookup failed")
		return
	}

	payload := events.PaymentEventPayload{
		TransactionID: txn.ID,
		RentalID:      txn.RentalID,
		RenterID:      rental.RenterID,
		OwnerID:       rental.OwnerID,
		Status:        string(txn.Status),
		Amount:        txn.Amount,
	}
	if err := s.eventBus.PublishJSON(events.EventPaymentUpdated, payload); err != nil {
		s.logger.Error().Err(err).Int64("transaction_id", txn.ID).Msg("publish event error")
	}
}

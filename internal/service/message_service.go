package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"rentalhub/internal/config"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

// MessageService is the per-rental thread between renter and owner.
type MessageService struct {
	messages  domain.MessageRepository
	rentals   domain.RentalRepository
	quota     domain.QuotaStore
	eventBus  domain.EventPublisher
	maxLength int
	limit     int
	window    time.Duration
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewMessageService(
	messages domain.MessageRepository,
	rentals domain.RentalRepository,
	quota domain.QuotaStore,
	eventBus domain.EventPublisher,
	cfg config.MessagingConfig,
	logger *zerolog.Logger,
) *MessageService {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = models.MaxMessageLength
	}
	if cfg.RateLimitMessages <= 0 {
		cfg.RateLimitMessages = models.RateLimitMessages
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = models.RateLimitWindow
	}
	return &MessageService{
		messages:  messages,
		rentals:   rentals,
		quota:     quota,
		eventBus:  eventBus,
		maxLength: cfg.MaxLength,
		limit:     cfg.RateLimitMessages,
		window:    time.Duration(cfg.RateLimitWindow) * time.Second,
		now:       time.Now,
		logger:    logger,
	}
}

// List returns the thread oldest first and marks the counterparty's messages as read.
func (s *MessageService) List(ctx context.Context, actorID, rentalID int64) ([]*models.Message, error) {
	rental, err := s.loadThread(ctx, actorID, rentalID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListMessagesAndMarkRead(ctx, rental.ID, actorID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}

func (s *MessageService) Send(ctx context.Context, actorID, rentalID int64, content string) (*models.Message, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("message cannot be empty")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, validationError("message cannot exceed %d characters", s.maxLength)
	}

	rental, err := s.loadThread(ctx, actorID, rentalID)
	if err != nil {
		return nil, err
	}

	if s.quota != nil {
		allowed, err := s.quota.CheckRateLimit(ctx, fmt.Sprintf("messages:%d", actorID), s.limit, s.window)
		if err != nil {
			// quota storage trouble should not block conversations
			s.logger.Warn().Err(err).Int64("actor_id", actorID).Msg("message quota check failed")
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	msg := &models.Message{
		RentalID: rental.ID,
		SenderID: actorID,
		Content:  content,
		SentAt:   s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, translateStorageError(err, "rental")
	}

	if s.eventBus != nil {
		payload := events.MessagePayload{
			MessageID:   msg.ID,
			RentalID:    rental.ID,
			SenderID:    actorID,
			RecipientID: rental.Counterparty(actorID),
		}
		if err := s.eventBus.PublishJSON(events.EventMessageSent, payload); err != nil {
			s.logger.Error().Err(err).Int64("message_id", msg.ID).Msg("publish event error")
		}
	}
	return msg, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, actorID int64) (int, error) {
	if err := requireActor(actorID); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, actorID)
}

func (s *MessageService) loadThread(ctx context.Context, actorID, rentalID int64) (*models.Rental, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	rental, err := s.rentals.GetRental(ctx, rentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	if !rental.IsParty(actorID) {
		return nil, forbiddenError("not a party to this rental")
	}
	return rental, nil
}

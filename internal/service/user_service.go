package service

import (
	"context"
	"net/mail"
	"strings"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

type CreateUserRequest struct {
	Name           string
	Email          string
	Phone          string
	TelegramChatID *int64
}

// UserProfile is the public view of a user with their rating as a reviewee.
type UserProfile struct {
	*models.User
	Rating models.RatingSummary `json:"rating"`
}

type UserService struct {
	users   domain.UserRepository
	reviews domain.ReviewRepository
	logger  *zerolog.Logger
}

func NewUserService(users domain.UserRepository, reviews domain.ReviewRepository, logger *zerolog.Logger) *UserService {
	return &UserService{users: users, reviews: reviews, logger: logger}
}

func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, validationError("invalid email")
	}

	user := &models.User{
		Name:           name,
		Email:          strings.ToLower(addr.Address),
		TelegramChatID: req.TelegramChatID,
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, translateStorageError(err, "user")
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, translateStorageError(err, "user")
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID int64) (*UserProfile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	rating, err := s.reviews.UserRating(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserProfile{User: user, Rating: rating}, nil
}

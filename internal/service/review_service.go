package service

import (
	"context"
	"strings"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

type CreateReviewRequest struct {
	RentalID int64
	Kind     string
	Rating   int
	Comment  string
}

// Eligibility is the answer to "may this actor review this rental with this kind".
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// ReviewList bundles reviews with their mean; Average is nil when empty.
type ReviewList struct {
	Reviews []*models.Review `json:"reviews"`
	Average *float64         `json:"average"`
	Count   int              `json:"count"`
}

// ReviewService gates reviews on rental state. It reads rentals and never changes them.
type ReviewService struct {
	reviews   domain.ReviewRepository
	rentals   domain.RentalRepository
	equipment domain.EquipmentRepository
	users     domain.UserRepository
	logger    *zerolog.Logger
}

func NewReviewService(
	reviews domain.ReviewRepository,
	rentals domain.RentalRepository,
	equipment domain.EquipmentRepository,
	users domain.UserRepository,
	logger *zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		rentals:   rentals,
		equipment: equipment,
		users:     users,
		logger:    logger,
	}
}

// checkEligibility returns nil when actor may leave a review of the given kind.
func checkEligibility(rental *models.Rental, actorID int64, kind models.ReviewKind, reviewed bool) error {
	if !rental.IsParty(actorID) {
		return forbiddenError("not a party to this rental")
	}
	if rental.Status != models.RentalCompleted {
		return validationError("only completed rentals can be reviewed")
	}
	if reviewed {
		return validationError("rental has already been reviewed")
	}
	switch kind {
	case models.ReviewEquipment:
		if actorID != rental.RenterID {
			return validationError("only the renter can review the equipment")
		}
	case models.ReviewCounterparty:
		if actorID != rental.OwnerID {
			return validationError("only the owner can review the renter")
		}
	default:
		return validationError("unknown review kind %q", kind)
	}
	return nil
}

func (s *ReviewService) CanReview(ctx context.Context, actorID, rentalID int64, rawKind string) (*Eligibility, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	kind, err := models.ParseReviewKind(rawKind)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	rental, err := s.rentals.GetRental(ctx, rentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	reviewed, err := s.reviews.HasReview(ctx, rental.ID)
	if err != nil {
		return nil, err
	}

	if err := checkEligibility(rental, actorID, kind, reviewed); err != nil {
		return &Eligibility{Eligible: false, Reason: err.Error()}, nil
	}
	return &Eligibility{Eligible: true}, nil
}

func (s *ReviewService) Create(ctx context.Context, actorID int64, req CreateReviewRequest) (*models.Review, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return nil, validationError("rating must be between %d and %d", models.MinRating, models.MaxRating)
	}
	kind, err := models.ParseReviewKind(req.Kind)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	rental, err := s.rentals.GetRental(ctx, req.RentalID)
	if err != nil {
		return nil, translateStorageError(err, "rental")
	}
	reviewed, err := s.reviews.HasReview(ctx, rental.ID)
	if err != nil {
		return nil, err
	}
	if err := checkEligibility(rental, actorID, kind, reviewed); err != nil {
		return nil, err
	}

	review := &models.Review{
		RentalID:    rental.ID,
		EquipmentID: rental.EquipmentID,
		ReviewerID:  actorID,
		RevieweeID:  rental.Counterparty(actorID),
		Rating:      req.Rating,
		Kind:        kind,
	}
	if comment := strings.TrimSpace(req.Comment); comment != "" {
		review.Comment = &comment
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, translateStorageError(err, "review")
	}

	s.logger.Info().
		Int64("review_id", review.ID).
		Int64("rental_id", rental.ID).
		Str("kind", string(kind)).
		Int("rating", review.Rating).
		Msg("review created")
	return review, nil
}

// Delete clears the rental's review slot; only the author may do it.
func (s *ReviewService) Delete(ctx context.Context, actorID, reviewID int64) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	review, err := s.reviews.GetReview(ctx, reviewID)
	if err != nil {
		return translateStorageError(err, "review")
	}
	if review.ReviewerID != actorID {
		return forbiddenError("only the author can delete a review")
	}
	if err := s.reviews.DeleteReview(ctx, reviewID); err != nil {
		return translateStorageError(err, "review")
	}
	return nil
}

func (s *ReviewService) EquipmentReviews(ctx context.Context, equipmentID int64) (*ReviewList, error) {
	if _, err := s.equipment.GetEquipment(ctx, equipmentID); err != nil {
		return nil, translateStorageError(err, "equipment")
	}
	reviews, err := s.reviews.ListEquipmentReviews(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	summary, err := s.reviews.EquipmentRating(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	return newReviewList(reviews, summary), nil
}

func (s *ReviewService) UserReviews(ctx context.Context, userID int64) (*ReviewList, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, translateStorageError(err, "user")
	}
	reviews, err := s.reviews.ListUserReviews(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.reviews.UserRating(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newReviewList(reviews, summary), nil
}

func newReviewList(reviews []*models.Review, summary models.RatingSummary) *ReviewList {
	if reviews == nil {
		reviews = []*models.Review{}
	}
	return &ReviewList{Reviews: reviews, Average: summary.Average, Count: summary.Count}
}

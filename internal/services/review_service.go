package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
	"greendrake/rentals/internal/utils"
)

// ReviewInput is the body of a new review.
type ReviewInput struct {
	Rating  int
	Comment string
}

// ReviewUpdate is a partial review update. Nil fields are left unchanged.
type ReviewUpdate struct {
	Rating  *int
	Comment *string
}

// IReviewService defines the interface for review operations.
type IReviewService interface {
	CreateReview(ctx context.Context, actor permissions.Actor, listingID utils.SixID, in ReviewInput) (*models.Review, error)
	FindListingReview(ctx context.Context, listingID, reviewID utils.SixID) (*models.Review, error)
	ListReviewsForListing(ctx context.Context, listingID utils.SixID) ([]models.Review, error)
	UpdateReview(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID, upd ReviewUpdate) (*models.Review, error)
	DeleteReview(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID) error
	RatingSummary(ctx context.Context, listingID utils.SixID) (*models.RatingSummary, error)
}

// reviewService implements IReviewService.
type reviewService struct {
	db          *mongo.Database
	eligibility *ReviewEligibility
}

// NewReviewService creates a new ReviewService gated by eligibility.
func NewReviewService(db *mongo.Database, eligibility *ReviewEligibility) IReviewService {
	return &reviewService{db: db, eligibility: eligibility}
}

func (s *reviewService) collection() *mongo.Collection {
	return s.db.Collection(db.ReviewsCollection)
}

func validateRating(verr *apperr.ValidationError, rating int) {
	if rating < models.MinRating || rating > models.MaxRating {
		verr.Add("rating", fmt.Sprintf("ensure this value is between %d and %d", models.MinRating, models.MaxRating))
	}
}

// CreateReview records actor's review of listingID. The actor must hold a confirmed
// booking of the listing and may review it only once.
func (s *reviewService) CreateReview(ctx context.Context, actor permissions.Actor, listingID utils.SixID, in ReviewInput) (*models.Review, error) {
	if !actor.Authenticated {
		return nil, apperr.ErrAuthentication
	}
	verr := &apperr.ValidationError{}
	validateRating(verr, in.Rating)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	existing, err := s.collection().CountDocuments(ctx, bson.M{"listing_id": listingID, "user_id": actor.UserID})
	if err != nil {
		return nil, fmt.Errorf("error checking existing review: %w", err)
	}
	if existing > 0 {
		return nil, apperr.ErrDuplicateReview
	}

	ok, err := s.eligibility.CanReview(ctx, actor.UserID, listingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotEligible
	}

	now := time.Now().UTC()
	var review *models.Review
	operation := func() error {
		review = &models.Review{
			ID:        utils.NewSixID(),
			ListingID: listingID,
			UserID:    actor.UserID,
			Rating:    in.Rating,
			Comment:   in.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := s.collection().InsertOne(ctx, review)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if db.DuplicateKeyIndex(err) == db.IndexReviewListingUser {
			return nil, apperr.ErrDuplicateReview
		}
		return nil, fmt.Errorf("error inserting review for listing %s: %w", listingID, err)
	}
	return review, nil
}

// FindListingReview retrieves a review only if it belongs to listingID.
func (s *reviewService) FindListingReview(ctx context.Context, listingID, reviewID utils.SixID) (*models.Review, error) {
	var review models.Review
	err := s.collection().FindOne(ctx, bson.M{"_id": reviewID, "listing_id": listingID}).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding review %s: %w", reviewID, err)
	}
	return &review, nil
}

// ListReviewsForListing returns the reviews of a listing, newest first.
func (s *reviewService) ListReviewsForListing(ctx context.Context, listingID utils.SixID) ([]models.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection().Find(ctx, bson.M{"listing_id": listingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing reviews of listing %s: %w", listingID, err)
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("error decoding reviews: %w", err)
	}
	return reviews, nil
}

func (s *reviewService) authorize(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID) (*models.Review, error) {
	if !actor.Authenticated {
		return nil, apperr.ErrAuthentication
	}
	review, err := s.FindListingReview(ctx, listingID, reviewID)
	if err != nil {
		return nil, err
	}
	if !permissions.IsReviewOwnerOrReadOnly.Allows(actor, permissions.ActionWrite, &permissions.Target{Author: review.UserID}) {
		return nil, fmt.Errorf("%w: only the author can change a review", apperr.ErrPermissionDenied)
	}
	return review, nil
}

// UpdateReview changes the rating or comment of the actor's own review.
func (s *reviewService) UpdateReview(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID, upd ReviewUpdate) (*models.Review, error) {
	if _, err := s.authorize(ctx, actor, listingID, reviewID); err != nil {
		return nil, err
	}

	verr := &apperr.ValidationError{}
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Rating != nil {
		validateRating(verr, *upd.Rating)
		set["rating"] = *upd.Rating
	}
	if upd.Comment != nil {
		set["comment"] = *upd.Comment
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var updated models.Review
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": reviewID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating review %s: %w", reviewID, err)
	}
	return &updated, nil
}

// DeleteReview removes the actor's own review.
func (s *reviewService) DeleteReview(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID) error {
	if _, err := s.authorize(ctx, actor, listingID, reviewID); err != nil {
		return err
	}
	if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": reviewID}); err != nil {
		return fmt.Errorf("error deleting review %s: %w", reviewID, err)
	}
	return nil
}

// RatingSummary averages the ratings of a listing. A listing without reviews has a zero summary.
func (s *reviewService) RatingSummary(ctx context.Context, listingID utils.SixID) (*models.RatingSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"listing_id": listingID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating ratings of listing %s: %w", listingID, err)
	}
	defer cursor.Close(ctx)

	summary := &models.RatingSummary{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(summary); err != nil {
			return nil, fmt.Errorf("error decoding rating summary: %w", err)
		}
	}
	return summary, cursor.Err()
}

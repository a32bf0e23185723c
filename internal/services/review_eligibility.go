package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// ConfirmedBookingFinder looks up a user's confirmed booking of a listing.
// It returns mongo.ErrNoDocuments when there is none.
type ConfirmedBookingFinder interface {
	FindConfirmedBooking(ctx context.Context, userID, listingID utils.SixID) (*models.Booking, error)
}

// ReviewEligibility decides whether a user has stayed at a listing.
type ReviewEligibility struct {
	bookings ConfirmedBookingFinder
}

func NewReviewEligibility(bookings ConfirmedBookingFinder) *ReviewEligibility {
	return &ReviewEligibility{bookings: bookings}
}

// CanReview reports whether userID holds a confirmed booking of listingID.
// Pending and canceled bookings do not count.
func (e *ReviewEligibility) CanReview(ctx context.Context, userID, listingID utils.SixID) (bool, error) {
	if userID.IsZero() {
		return false, nil
	}
	_, err := e.bookings.FindConfirmedBooking(ctx, userID, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("checking review eligibility of user %s for listing %s: %w", userID, listingID, err)
	}
	return true, nil
}

package models

import (
	"time"

	"greendrake/rentals/internal/utils"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating left by a user for a listing. At most one per (listing, user).
type Review struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	Rating    int         `bson:"rating" json:"rating"`
	Comment   string      `bson:"comment" json:"comment"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
}

package models

import (
	"time"

	"greendrake/rentals/internal/utils"
)

// ListingType is the kind of property offered.
type ListingType string

const (
	ListingTypeApartment ListingType = "apartment"
	ListingTypeHouse     ListingType = "house"
	ListingTypeStudio    ListingType = "studio"
)

// Valid reports whether t is a known listing type.
func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeApartment, ListingTypeHouse, ListingTypeStudio:
		return true
	}
	return false
}

// Listing represents a rentable property published by a landlord.
type Listing struct {
	ID          utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID     utils.SixID `bson:"owner_id" json:"owner_id"`
	Title       string      `bson:"title" json:"title"`
	Description string      `bson:"description" json:"description"`
	Location    string      `bson:"location" json:"location"`
	Price       Price       `bson:"price" json:"price"`
	Rooms       int         `bson:"rooms" json:"rooms"`
	Type        ListingType `bson:"type" json:"type"`
	IsActive    bool        `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
}

// RatingSummary aggregates the reviews of a listing.
type RatingSummary struct {
	Average float64 `bson:"average" json:"average"`
	Count   int     `bson:"count" json:"count"`
}

package models

import (
	"time"

	"greendrake/rentals/internal/utils"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCanceled  BookingStatus = "canceled"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCanceled:
		return true
	case BookingPending, BookingConfirmed:
		return false
	}
	return true
}

// Booking is a tenant's request to occupy a listing for [StartDate, EndDate).
type Booking struct {
	ID        utils.SixID   `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID utils.SixID   `bson:"listing_id" json:"listing_id"`
	UserID    utils.SixID   `bson:"user_id" json:"user_id"`
	StartDate Date          `bson:"start_date" json:"start_date"`
	EndDate   Date          `bson:"end_date" json:"end_date"`
	Status    BookingStatus `bson:"status" json:"status"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}

// Overlaps reports whether the booking's range intersects [start, end)
// under half-open semantics: touching endpoints do not overlap.
func (b *Booking) Overlaps(start, end Date) bool {
	return b.StartDate.Before(end) && b.EndDate.After(start)
}

// CanCancel reports whether the stay has not started yet relative to today.
func (b *Booking) CanCancel(today Date) bool {
	return b.StartDate.After(today)
}

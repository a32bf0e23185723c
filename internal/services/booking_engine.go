package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// ErrBookingChanged is returned when the stored status no longer matches what the caller read.
var ErrBookingChanged = errors.New("booking was modified concurrently")

// BookingStore is the persistence the booking engine needs.
type BookingStore interface {
	// FindOverlappingConfirmed returns confirmed bookings of listingID intersecting [start, end),
	// excluding excludeID.
	FindOverlappingConfirmed(ctx context.Context, listingID utils.SixID, start, end models.Date, excludeID utils.SixID) ([]models.Booking, error)
	// SetStatus moves bookingID from one status to another. It returns ErrBookingChanged
	// when the booking is no longer in status from.
	SetStatus(ctx context.Context, bookingID utils.SixID, from, to models.BookingStatus, at time.Time) error
}

// BookingEngine guards status transitions and keeps confirmed bookings of a listing disjoint.
type BookingEngine struct {
	store    BookingStore
	locker   db.Locker
	lockWait time.Duration
	now      func() time.Time
}

// NewBookingEngine creates a BookingEngine. lockWait bounds how long a confirmation
// waits for the per-listing lock.
func NewBookingEngine(store BookingStore, locker db.Locker, lockWait time.Duration) *BookingEngine {
	return &BookingEngine{
		store:    store,
		locker:   locker,
		lockWait: lockWait,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateRange rejects empty, reversed and zero-length ranges.
func ValidateRange(start, end models.Date) error {
	verr := &apperr.ValidationError{}
	if start.IsZero() {
		verr.Add("start_date", "this field is required")
	}
	if end.IsZero() {
		verr.Add("end_date", "this field is required")
	}
	if verr.Empty() && !start.Before(end) {
		verr.Add("end_date", "end date must be after start date")
	}
	return verr.OrNil()
}

func validTransition(from, to models.BookingStatus) bool {
	switch from {
	case models.BookingPending:
		return to == models.BookingConfirmed || to == models.BookingCanceled
	case models.BookingConfirmed:
		return to == models.BookingCanceled
	}
	return false
}

// ValidateAndTransition moves booking to proposed. Confirmation runs under the listing's
// lock and fails with apperr.ErrDateConflict when another confirmed booking overlaps;
// nothing is written in that case. On success booking is updated in place.
func (e *BookingEngine) ValidateAndTransition(ctx context.Context, booking *models.Booking, proposed models.BookingStatus) error {
	if err := ValidateRange(booking.StartDate, booking.EndDate); err != nil {
		return err
	}
	if !proposed.Valid() {
		return apperr.NewValidationError("status", fmt.Sprintf("%q is not a valid choice", proposed))
	}
	if !validTransition(booking.Status, proposed) {
		return apperr.NewValidationError("status", fmt.Sprintf("cannot change status from %s to %s", booking.Status, proposed))
	}

	if proposed != models.BookingConfirmed {
		return e.apply(ctx, booking, proposed)
	}

	lockCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	defer cancel()
	unlock, err := e.locker.Lock(lockCtx, "listing:"+booking.ListingID.String())
	if err != nil {
		return fmt.Errorf("locking listing %s: %w", booking.ListingID, err)
	}
	defer unlock()

	overlapping, err := e.store.FindOverlappingConfirmed(ctx, booking.ListingID, booking.StartDate, booking.EndDate, booking.ID)
	if err != nil {
		return fmt.Errorf("checking overlaps for booking %s: %w", booking.ID, err)
	}
	if len(overlapping) > 0 {
		return fmt.Errorf("%w: overlaps booking %s (%s to %s)", apperr.ErrDateConflict,
			overlapping[0].ID, overlapping[0].StartDate, overlapping[0].EndDate)
	}
	return e.apply(ctx, booking, proposed)
}

func (e *BookingEngine) apply(ctx context.Context, booking *models.Booking, proposed models.BookingStatus) error {
	now := e.now()
	if err := e.store.SetStatus(ctx, booking.ID, booking.Status, proposed, now); err != nil {
		return err
	}
	booking.Status = proposed
	booking.UpdatedAt = now
	return nil
}

package permissions

import (
	"fmt"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// AuthorizeBookingStatus checks whether actor may move booking to proposed.
//
// The listing owner may confirm or cancel any booking that is not canceled.
// The booking's tenant may only cancel, and only while it is pending.
// Everything else is denied.
func AuthorizeBookingStatus(actor Actor, booking *models.Booking, listingOwner utils.SixID, proposed models.BookingStatus) error {
	if !actor.Authenticated {
		return apperr.ErrAuthentication
	}
	if actor.Is(listingOwner) {
		switch proposed {
		case models.BookingConfirmed, models.BookingCanceled:
			if booking.Status.Terminal() {
				return fmt.Errorf("%w: booking is already %s", apperr.ErrPermissionDenied, booking.Status)
			}
			return nil
		case models.BookingPending:
			return fmt.Errorf("%w: cannot set status %s", apperr.ErrPermissionDenied, proposed)
		}
		return fmt.Errorf("%w: unknown status %q", apperr.ErrPermissionDenied, proposed)
	}
	if actor.Is(booking.UserID) && booking.Status == models.BookingPending && proposed == models.BookingCanceled {
		return nil
	}
	return apperr.ErrPermissionDenied
}

// DeleteOutcome is what a booking delete request resolves to.
type DeleteOutcome int

const (
	DeleteDenied DeleteOutcome = iota
	// DeleteHard removes the booking document.
	DeleteHard
	// DeleteSoftCancel keeps the booking and sets it to canceled.
	DeleteSoftCancel
)

// DecideBookingDelete resolves a delete request. The listing owner hard-deletes;
// the booking's tenant may cancel instead, but only before the stay starts.
func DecideBookingDelete(actor Actor, booking *models.Booking, listingOwner utils.SixID, today models.Date) (DeleteOutcome, error) {
	if !actor.Authenticated {
		return DeleteDenied, apperr.ErrAuthentication
	}
	if actor.Is(listingOwner) {
		return DeleteHard, nil
	}
	if actor.Is(booking.UserID) && booking.CanCancel(today) && !booking.Status.Terminal() {
		return DeleteSoftCancel, nil
	}
	return DeleteDenied, fmt.Errorf("%w: cannot cancel booking", apperr.ErrPermissionDenied)
}

// CanViewBooking reports whether actor may see booking: its tenant and the listing owner can.
func CanViewBooking(actor Actor, booking *models.Booking, listingOwner utils.SixID) bool {
	return actor.Is(listingOwner) || actor.Is(booking.UserID)
}

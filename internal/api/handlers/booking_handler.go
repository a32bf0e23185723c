package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
	"greendrake/rentals/internal/services"
	"greendrake/rentals/internal/utils"
)

const bookingNotFound = "Booking not found"

// BookingHandler serves bookings, both top-level and nested under a listing.
type BookingHandler struct {
	listingService services.IListingService
	bookingService services.IBookingService
	notifier       INotifier
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(listingService services.IListingService, bookingService services.IBookingService, notifier INotifier) *BookingHandler {
	return &BookingHandler{
		listingService: listingService,
		bookingService: bookingService,
		notifier:       notifier,
	}
}

type bookingRequest struct {
	Listing   string       `json:"listing"`
	StartDate *models.Date `json:"start_date" binding:"required"`
	EndDate   *models.Date `json:"end_date" binding:"required"`
}

type bookingStatusRequest struct {
	Status models.BookingStatus `json:"status" binding:"required,oneof=pending confirmed canceled"`
}

func nonNilBookings(bookings []models.Booking) []models.Booking {
	if bookings == nil {
		return []models.Booking{}
	}
	return bookings
}

// ListMyBookings handles GET /v1/bookings: a landlord sees the bookings on their
// listings, a tenant sees their own.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookingsForActor(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, nonNilBookings(bookings))
}

// CreateBooking handles POST /v1/bookings (listing in the body) and
// POST /v1/listings/:id/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req bookingRequest
	if !bindJSON(c, &req) {
		return
	}

	var listing *models.Listing
	if c.Param("id") != "" {
		var ok bool
		if listing, ok = loadListing(c, h.listingService); !ok {
			return
		}
	} else {
		listingID, err := utils.ParseSixID(req.Listing)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": gin.H{"listing": "enter a valid listing ID"}})
			return
		}
		listing, err = h.listingService.FindListingByID(c.Request.Context(), listingID)
		if err != nil {
			respondError(c, err, listingNotFound)
			return
		}
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), middleware.ActorFrom(c), listing, *req.StartDate, *req.EndDate)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.notifier.BookingChanged(c.Request.Context(), booking)
	c.JSON(http.StatusCreated, booking)
}

// ListListingBookings handles GET /v1/listings/:id/bookings
func (h *BookingHandler) ListListingBookings(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	bookings, err := h.bookingService.ListBookingsForListing(c.Request.Context(), middleware.ActorFrom(c), listing)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, nonNilBookings(bookings))
}

// GetBooking handles GET /v1/listings/:id/bookings/:booking_id. Only the tenant and
// the listing owner can see a booking; everyone else gets 404.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "booking_id", "booking")
	if !ok {
		return
	}
	booking, err := h.bookingService.FindListingBooking(c.Request.Context(), listing.ID, bookingID)
	if err != nil {
		respondError(c, err, bookingNotFound)
		return
	}
	if !permissions.CanViewBooking(middleware.ActorFrom(c), booking, listing.OwnerID) {
		c.JSON(http.StatusNotFound, gin.H{"error": bookingNotFound})
		return
	}
	c.JSON(http.StatusOK, booking)
}

// UpdateBookingStatus handles PATCH /v1/listings/:id/bookings/:booking_id
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "booking_id", "booking")
	if !ok {
		return
	}
	var req bookingStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.UpdateBookingStatus(c.Request.Context(), middleware.ActorFrom(c), listing, bookingID, req.Status)
	if err != nil {
		respondError(c, err, bookingNotFound)
		return
	}
	h.notifier.BookingChanged(c.Request.Context(), booking)
	c.JSON(http.StatusOK, booking)
}

// DeleteBooking handles DELETE /v1/listings/:id/bookings/:booking_id.
// The listing owner deletes the booking (204); its tenant cancels it instead (200).
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "booking_id", "booking")
	if !ok {
		return
	}

	outcome, booking, err := h.bookingService.DeleteBooking(c.Request.Context(), middleware.ActorFrom(c), listing, bookingID)
	if err != nil {
		respondError(c, err, bookingNotFound)
		return
	}
	if outcome == permissions.DeleteSoftCancel {
		h.notifier.BookingChanged(c.Request.Context(), booking)
		c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled successfully", "booking": booking})
		return
	}
	c.Status(http.StatusNoContent)
}

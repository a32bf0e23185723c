package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
	"greendrake/rentals/internal/services"
)

const listingNotFound = "Listing not found"

// canEditListing gates listing writes: landlords, and only on their own listings.
var canEditListing = permissions.All(permissions.IsLandlord, permissions.IsOwnerOrReadOnly)

// ListingHandler handles REST requests for listings.
type ListingHandler struct {
	listingService services.IListingService
	bookingService services.IBookingService
	reviewService  services.IReviewService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingService services.IListingService, bookingService services.IBookingService, reviewService services.IReviewService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		bookingService: bookingService,
		reviewService:  reviewService,
	}
}

type listingRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Price       *models.Price      `json:"price"`
	Rooms       int                `json:"rooms"`
	Type        models.ListingType `json:"type"`
	IsActive    *bool              `json:"is_active"`
}

type listingUpdateRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Location    *string             `json:"location"`
	Price       *models.Price       `json:"price"`
	Rooms       *int                `json:"rooms"`
	Type        *models.ListingType `json:"type"`
	IsActive    *bool               `json:"is_active"`
}

// listingDetail is a listing with the bookings the viewer may see, its reviews and rating.
type listingDetail struct {
	*models.Listing
	Bookings []models.Booking     `json:"bookings"`
	Reviews  []models.Review      `json:"reviews"`
	Rating   models.RatingSummary `json:"rating"`
}

// loadListing resolves the :id path parameter, writing the error response if it fails.
func loadListing(c *gin.Context, listingService services.IListingService) (*models.Listing, bool) {
	listingID, ok := parseIDParam(c, "id", "listing")
	if !ok {
		return nil, false
	}
	listing, err := listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, listingNotFound)
		return nil, false
	}
	return listing, true
}

// parseListingFilter reads the query string of GET /v1/listings.
func parseListingFilter(c *gin.Context) (services.ListingFilter, error) {
	verr := &apperr.ValidationError{}
	filter := services.ListingFilter{
		Type:     models.ListingType(c.Query("type")),
		Location: c.Query("location"),
		Ordering: c.Query("ordering"),
	}
	if s := c.Query("rooms"); s != "" {
		rooms, err := strconv.Atoi(s)
		if err != nil {
			verr.Add("rooms", "enter a whole number")
		} else {
			filter.Rooms = &rooms
		}
	}
	if s := c.Query("is_active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			verr.Add("is_active", "enter true or false")
		} else {
			filter.IsActive = &active
		}
	}
	for key, dst := range map[string]**models.Price{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		s := c.Query(key)
		if s == "" {
			continue
		}
		price, err := models.ParsePrice(s)
		if err != nil {
			verr.Add(key, "enter a number with at most 2 decimal places")
			continue
		}
		*dst = &price
	}
	return filter, verr.OrNil()
}

// ListListings handles GET /v1/listings
func (h *ListingHandler) ListListings(c *gin.Context) {
	filter, err := parseListingFilter(c)
	if err != nil {
		respondError(c, err, "")
		return
	}
	listings, err := h.listingService.ListListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "")
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	c.JSON(http.StatusOK, listings)
}

// CreateListing handles POST /v1/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	var req listingRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := middleware.ActorFrom(c)
	listing, err := h.listingService.CreateListing(c.Request.Context(), actor.UserID, services.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Price:       req.Price,
		Rooms:       req.Rooms,
		Type:        req.Type,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// GetListing handles GET /v1/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	bookings, err := h.bookingService.ListBookingsForListing(ctx, middleware.ActorFrom(c), listing)
	if err != nil {
		respondError(c, err, "")
		return
	}
	reviews, err := h.reviewService.ListReviewsForListing(ctx, listing.ID)
	if err != nil {
		respondError(c, err, "")
		return
	}
	rating, err := h.reviewService.RatingSummary(ctx, listing.ID)
	if err != nil {
		respondError(c, err, "")
		return
	}

	detail := listingDetail{Listing: listing, Bookings: bookings, Reviews: reviews, Rating: *rating}
	if detail.Bookings == nil {
		detail.Bookings = []models.Booking{}
	}
	if detail.Reviews == nil {
		detail.Reviews = []models.Review{}
	}
	c.JSON(http.StatusOK, detail)
}

// authorizeEdit loads the listing and checks the actor may change it.
func (h *ListingHandler) authorizeEdit(c *gin.Context) (*models.Listing, bool) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return nil, false
	}
	actor := middleware.ActorFrom(c)
	if !canEditListing.Allows(actor, permissions.ActionWrite, &permissions.Target{ListingOwner: listing.OwnerID}) {
		if !actor.Authenticated {
			respondError(c, apperr.ErrAuthentication, "")
		} else {
			respondError(c, apperr.ErrPermissionDenied, "")
		}
		return nil, false
	}
	return listing, true
}

// UpdateListing handles PATCH /v1/listings/:id
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	listing, ok := h.authorizeEdit(c)
	if !ok {
		return
	}
	var req listingUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.listingService.UpdateListing(c.Request.Context(), listing.ID, services.ListingUpdate{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Price:       req.Price,
		Rooms:       req.Rooms,
		Type:        req.Type,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondError(c, err, listingNotFound)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteListing handles DELETE /v1/listings/:id. Bookings and reviews go with it.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	listing, ok := h.authorizeEdit(c)
	if !ok {
		return
	}
	if err := h.listingService.DeleteListing(c.Request.Context(), listing.ID); err != nil {
		respondError(c, err, listingNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

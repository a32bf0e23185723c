package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/services"
)

const reviewNotFound = "Review not found"

// ReviewHandler serves the reviews of a listing.
type ReviewHandler struct {
	listingService services.IListingService
	reviewService  services.IReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(listingService services.IListingService, reviewService services.IReviewService) *ReviewHandler {
	return &ReviewHandler{
		listingService: listingService,
		reviewService:  reviewService,
	}
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

type reviewUpdateRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

// ListReviews handles GET /v1/listings/:id/reviews
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	reviews, err := h.reviewService.ListReviewsForListing(c.Request.Context(), listing.ID)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// CreateReview handles POST /v1/listings/:id/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.reviewService.CreateReview(c.Request.Context(), middleware.ActorFrom(c), listing.ID, services.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, review)
}

// GetReview handles GET /v1/listings/:id/reviews/:review_id
func (h *ReviewHandler) GetReview(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "review_id", "review")
	if !ok {
		return
	}
	review, err := h.reviewService.FindListingReview(c.Request.Context(), listing.ID, reviewID)
	if err != nil {
		respondError(c, err, reviewNotFound)
		return
	}
	c.JSON(http.StatusOK, review)
}

// UpdateReview handles PATCH /v1/listings/:id/reviews/:review_id
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "review_id", "review")
	if !ok {
		return
	}
	var req reviewUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.reviewService.UpdateReview(c.Request.Context(), middleware.ActorFrom(c), listing.ID, reviewID, services.ReviewUpdate{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err, reviewNotFound)
		return
	}
	c.JSON(http.StatusOK, review)
}

// DeleteReview handles DELETE /v1/listings/:id/reviews/:review_id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	listing, ok := loadListing(c, h.listingService)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "review_id", "review")
	if !ok {
		return
	}
	if err := h.reviewService.DeleteReview(c.Request.Context(), middleware.ActorFrom(c), listing.ID, reviewID); err != nil {
		respondError(c, err, reviewNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

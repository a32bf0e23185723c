package handlers

import (
	"github.com/gin-gonic/gin"

	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/permissions"
)

// Handlers groups the public API handlers.
type Handlers struct {
	Users    *UserHandler
	Listings *ListingHandler
	Bookings *BookingHandler
	Reviews  *ReviewHandler
}

// RegisterRoutes mounts the public API on v1. authLimit guards login and registration.
// AuthGate must already run on v1 so handlers see the caller.
func RegisterRoutes(v1 *gin.RouterGroup, h Handlers, authLimit gin.HandlerFunc) {
	requireAuth := middleware.RequireAuth()

	users := v1.Group("/users")
	{
		users.POST("/register", authLimit, h.Users.Register)
		users.POST("/login", authLimit, h.Users.Login)
		users.POST("/logout", h.Users.Logout)
		users.GET("/logout", h.Users.Logout)
		users.GET("/me", requireAuth, h.Users.Me)
		users.GET("", middleware.AdminMiddleware(), h.Users.ListUsers)
	}

	v1.GET("/listings", h.Listings.ListListings)
	v1.POST("/listings", middleware.Require(permissions.IsLandlord), h.Listings.CreateListing)

	listing := v1.Group("/listings/:id", requireAuth)
	{
		listing.GET("", h.Listings.GetListing)
		listing.PATCH("", h.Listings.UpdateListing)
		listing.DELETE("", h.Listings.DeleteListing)

		listing.GET("/bookings", h.Bookings.ListListingBookings)
		listing.POST("/bookings", h.Bookings.CreateBooking)
		listing.GET("/bookings/:booking_id", h.Bookings.GetBooking)
		listing.PATCH("/bookings/:booking_id", h.Bookings.UpdateBookingStatus)
		listing.DELETE("/bookings/:booking_id", h.Bookings.DeleteBooking)

		listing.GET("/reviews", h.Reviews.ListReviews)
		listing.POST("/reviews", h.Reviews.CreateReview)
		listing.GET("/reviews/:review_id", h.Reviews.GetReview)
		listing.PATCH("/reviews/:review_id", h.Reviews.UpdateReview)
		listing.DELETE("/reviews/:review_id", h.Reviews.DeleteReview)
	}

	v1.GET("/bookings", requireAuth, h.Bookings.ListMyBookings)
	v1.POST("/bookings", requireAuth, h.Bookings.CreateBooking)
}

package handlers

import (
	"context"

	"greendrake/rentals/internal/models"
)

// INotifier enqueues notification emails. Implemented by tasks.Notifier.
type INotifier interface {
	Welcome(ctx context.Context, user *models.User, appName string)
	BookingChanged(ctx context.Context, booking *models.Booking)
}

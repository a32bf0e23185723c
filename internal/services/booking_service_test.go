package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
)

type bookingFixture struct {
	bookings IBookingService
	reviews  IReviewService
	listing  *models.Listing
	landlord permissions.Actor
	tenant   permissions.Actor
	other    permissions.Actor
	setNow   func(time.Time)
}

func setupBookingFixture(t *testing.T, prefix string) *bookingFixture {
	t.Helper()
	database := setupTestDatabase(t, prefix)
	users := NewUserService(database, testConfig())
	listings := NewListingService(database)

	landlord := registerUser(t, users, "landlord", "landlord")
	tenant := registerUser(t, users, "tenant", "tenant")
	other := registerUser(t, users, "other", "tenant")

	listing, err := listings.CreateListing(context.Background(), landlord.ID, validListingInput())
	require.NoError(t, err)

	bookings := NewBookingService(database, db.NewMongoLocker(database, 30*time.Second), 5*time.Second)
	svc := bookings.(*bookingService)
	svc.now = func() time.Time { return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC) }

	return &bookingFixture{
		bookings: bookings,
		reviews:  NewReviewService(database, NewReviewEligibility(bookings)),
		listing:  listing,
		landlord: actorOf(landlord),
		tenant:   actorOf(tenant),
		other:    actorOf(other),
		setNow: func(now time.Time) {
			svc.now = func() time.Time { return now }
		},
	}
}

func (f *bookingFixture) book(t *testing.T, actor permissions.Actor, start, end string) *models.Booking {
	t.Helper()
	b, err := f.bookings.CreateBooking(context.Background(), actor, f.listing, mustDate(start), mustDate(end))
	require.NoError(t, err)
	return b
}

func TestBookingService_Create(t *testing.T) {
	f := setupBookingFixture(t, "booking_create")
	ctx := context.Background()

	b := f.book(t, f.tenant, "2024-10-01", "2024-10-05")
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, f.tenant.UserID, b.UserID)

	_, err := f.bookings.CreateBooking(ctx, f.landlord, f.listing, mustDate("2024-10-01"), mustDate("2024-10-05"))
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.bookings.CreateBooking(ctx, permissions.Anonymous, f.listing, mustDate("2024-10-01"), mustDate("2024-10-05"))
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	_, err = f.bookings.CreateBooking(ctx, f.tenant, f.listing, mustDate("2024-10-05"), mustDate("2024-10-01"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	inactive := *f.listing
	inactive.IsActive = false
	_, err = f.bookings.CreateBooking(ctx, f.tenant, &inactive, mustDate("2024-10-01"), mustDate("2024-10-05"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBookingService_ConfirmConflicts(t *testing.T) {
	f := setupBookingFixture(t, "booking_conflict")
	ctx := context.Background()

	a := f.book(t, f.tenant, "2024-10-01", "2024-10-05")
	b := f.book(t, f.other, "2024-10-03", "2024-10-07")
	c := f.book(t, f.other, "2024-10-05", "2024-10-08")

	confirmed, err := f.bookings.UpdateBookingStatus(ctx, f.landlord, f.listing, a.ID, models.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, confirmed.Status)

	_, err = f.bookings.UpdateBookingStatus(ctx, f.landlord, f.listing, b.ID, models.BookingConfirmed)
	assert.ErrorIs(t, err, apperr.ErrDateConflict)
	stored, err := f.bookings.FindBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, stored.Status)

	_, err = f.bookings.UpdateBookingStatus(ctx, f.landlord, f.listing, c.ID, models.BookingConfirmed)
	assert.NoError(t, err)
}

func TestBookingService_StatusPermissions(t *testing.T) {
	f := setupBookingFixture(t, "booking_status")
	ctx := context.Background()
	b := f.book(t, f.tenant, "2024-10-01", "2024-10-05")

	_, err := f.bookings.UpdateBookingStatus(ctx, f.tenant, f.listing, b.ID, models.BookingConfirmed)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.bookings.UpdateBookingStatus(ctx, f.other, f.listing, b.ID, models.BookingCanceled)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	canceled, err := f.bookings.UpdateBookingStatus(ctx, f.tenant, f.listing, b.ID, models.BookingCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCanceled, canceled.Status)

	_, err = f.bookings.UpdateBookingStatus(ctx, f.landlord, f.listing, b.ID, models.BookingConfirmed)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	other := *f.listing
	other.ID = b.ID
	_, err = f.bookings.UpdateBookingStatus(ctx, f.landlord, &other, b.ID, models.BookingCanceled)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestBookingService_Delete(t *testing.T) {
	f := setupBookingFixture(t, "booking_delete")
	ctx := context.Background()

	future := f.book(t, f.tenant, "2024-10-01", "2024-10-05")
	outcome, canceled, err := f.bookings.DeleteBooking(ctx, f.tenant, f.listing, future.ID)
	require.NoError(t, err)
	assert.Equal(t, permissions.DeleteSoftCancel, outcome)
	assert.Equal(t, models.BookingCanceled, canceled.Status)

	started := f.book(t, f.tenant, "2024-08-30", "2024-09-05")
	_, _, err = f.bookings.DeleteBooking(ctx, f.tenant, f.listing, started.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	f.setNow(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	_, _, err = f.bookings.DeleteBooking(ctx, f.other, f.listing, started.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	outcome, _, err = f.bookings.DeleteBooking(ctx, f.landlord, f.listing, started.ID)
	require.NoError(t, err)
	assert.Equal(t, permissions.DeleteHard, outcome)
	_, err = f.bookings.FindBookingByID(ctx, started.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestBookingService_Listing(t *testing.T) {
	f := setupBookingFixture(t, "booking_list")
	ctx := context.Background()

	mine := f.book(t, f.tenant, "2024-10-01", "2024-10-05")
	f.book(t, f.other, "2024-10-10", "2024-10-12")

	forLandlord, err := f.bookings.ListBookingsForActor(ctx, f.landlord)
	require.NoError(t, err)
	assert.Len(t, forLandlord, 2)

	forTenant, err := f.bookings.ListBookingsForActor(ctx, f.tenant)
	require.NoError(t, err)
	require.Len(t, forTenant, 1)
	assert.Equal(t, mine.ID, forTenant[0].ID)

	_, err = f.bookings.ListBookingsForActor(ctx, permissions.Anonymous)
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	onListing, err := f.bookings.ListBookingsForListing(ctx, f.landlord, f.listing)
	require.NoError(t, err)
	assert.Len(t, onListing, 2)

	onListing, err = f.bookings.ListBookingsForListing(ctx, f.tenant, f.listing)
	require.NoError(t, err)
	assert.Len(t, onListing, 1)

	onListing, err = f.bookings.ListBookingsForListing(ctx, permissions.Anonymous, f.listing)
	require.NoError(t, err)
	assert.Empty(t, onListing)
}

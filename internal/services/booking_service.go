package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
	"greendrake/rentals/internal/utils"
)

// IBookingService defines the interface for booking operations.
type IBookingService interface {
	CreateBooking(ctx context.Context, actor permissions.Actor, listing *models.Listing, start, end models.Date) (*models.Booking, error)
	FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error)
	FindListingBooking(ctx context.Context, listingID, bookingID utils.SixID) (*models.Booking, error)
	ListBookingsForActor(ctx context.Context, actor permissions.Actor) ([]models.Booking, error)
	ListBookingsForListing(ctx context.Context, actor permissions.Actor, listing *models.Listing) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, actor permissions.Actor, listing *models.Listing, bookingID utils.SixID, proposed models.BookingStatus) (*models.Booking, error)
	DeleteBooking(ctx context.Context, actor permissions.Actor, listing *models.Listing, bookingID utils.SixID) (permissions.DeleteOutcome, *models.Booking, error)
	FindConfirmedBooking(ctx context.Context, userID, listingID utils.SixID) (*models.Booking, error)
}

// mongoBookingStore is the BookingStore backed by the bookings collection.
type mongoBookingStore struct {
	collection *mongo.Collection
}

func (s *mongoBookingStore) FindOverlappingConfirmed(ctx context.Context, listingID utils.SixID, start, end models.Date, excludeID utils.SixID) ([]models.Booking, error) {
	filter := bson.M{
		"listing_id": listingID,
		"status":     models.BookingConfirmed,
		"_id":        bson.M{"$ne": excludeID},
		"start_date": bson.M{"$lt": end},
		"end_date":   bson.M{"$gt": start},
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("error querying overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding overlapping bookings: %w", err)
	}
	return bookings, nil
}

func (s *mongoBookingStore) SetStatus(ctx context.Context, bookingID utils.SixID, from, to models.BookingStatus, at time.Time) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": bookingID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("error updating status of booking %s: %w", bookingID, err)
	}
	if res.MatchedCount == 0 {
		return ErrBookingChanged
	}
	return nil
}

// bookingService implements IBookingService.
type bookingService struct {
	db     *mongo.Database
	engine *BookingEngine
	now    func() time.Time
}

// NewBookingService creates a new BookingService. Confirmations serialize per listing through locker.
func NewBookingService(database *mongo.Database, locker db.Locker, lockWait time.Duration) IBookingService {
	store := &mongoBookingStore{collection: database.Collection(db.BookingsCollection)}
	return &bookingService{
		db:     database,
		engine: NewBookingEngine(store, locker, lockWait),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) collection() *mongo.Collection {
	return s.db.Collection(db.BookingsCollection)
}

// CreateBooking records a pending booking of listing by a tenant.
func (s *bookingService) CreateBooking(ctx context.Context, actor permissions.Actor, listing *models.Listing, start, end models.Date) (*models.Booking, error) {
	if !actor.Authenticated {
		return nil, apperr.ErrAuthentication
	}
	if !permissions.IsTenant.Allows(actor, permissions.ActionWrite, nil) {
		return nil, fmt.Errorf("%w: only tenants can book", apperr.ErrPermissionDenied)
	}
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	if !listing.IsActive {
		return nil, apperr.NewValidationError("listing", "listing is not available for booking")
	}

	now := s.now()
	var newBooking *models.Booking
	operation := func() error {
		newBooking = &models.Booking{
			ID:        utils.NewSixID(),
			ListingID: listing.ID,
			UserID:    actor.UserID,
			StartDate: start,
			EndDate:   end,
			Status:    models.BookingPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := s.collection().InsertOne(ctx, newBooking)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("error inserting booking for listing %s: %w", listing.ID, err)
	}
	return newBooking, nil
}

func (s *bookingService) findOne(ctx context.Context, filter bson.M) (*models.Booking, error) {
	var booking models.Booking
	if err := s.collection().FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding booking: %w", err)
	}
	return &booking, nil
}

func (s *bookingService) find(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}

// FindBookingByID retrieves a booking. Returns mongo.ErrNoDocuments if it does not exist.
func (s *bookingService) FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	return s.findOne(ctx, bson.M{"_id": bookingID})
}

// FindListingBooking retrieves a booking only if it belongs to listingID.
func (s *bookingService) FindListingBooking(ctx context.Context, listingID, bookingID utils.SixID) (*models.Booking, error) {
	return s.findOne(ctx, bson.M{"_id": bookingID, "listing_id": listingID})
}

// FindConfirmedBooking returns any confirmed booking of listingID held by userID.
func (s *bookingService) FindConfirmedBooking(ctx context.Context, userID, listingID utils.SixID) (*models.Booking, error) {
	return s.findOne(ctx, bson.M{"user_id": userID, "listing_id": listingID, "status": models.BookingConfirmed})
}

// ListBookingsForActor returns, newest first, the bookings on a landlord's listings
// or a tenant's own bookings.
func (s *bookingService) ListBookingsForActor(ctx context.Context, actor permissions.Actor) ([]models.Booking, error) {
	if !actor.Authenticated {
		return nil, apperr.ErrAuthentication
	}
	switch actor.Role {
	case models.RoleLandlord:
		listingIDs, err := s.ownedListingIDs(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if len(listingIDs) == 0 {
			return []models.Booking{}, nil
		}
		return s.find(ctx, bson.M{"listing_id": bson.M{"$in": listingIDs}})
	case models.RoleTenant:
		return s.find(ctx, bson.M{"user_id": actor.UserID})
	}
	return []models.Booking{}, nil
}

func (s *bookingService) ownedListingIDs(ctx context.Context, ownerID utils.SixID) ([]utils.SixID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding listings of user %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var ids []utils.SixID
	for cursor.Next(ctx) {
		var doc struct {
			ID utils.SixID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding listing id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

// ListBookingsForListing returns the bookings of listing visible to actor:
// all of them for the owner, the actor's own for anyone else.
func (s *bookingService) ListBookingsForListing(ctx context.Context, actor permissions.Actor, listing *models.Listing) ([]models.Booking, error) {
	if !actor.Authenticated {
		return []models.Booking{}, nil
	}
	filter := bson.M{"listing_id": listing.ID}
	if !actor.Is(listing.OwnerID) {
		filter["user_id"] = actor.UserID
	}
	return s.find(ctx, filter)
}

// UpdateBookingStatus authorizes and applies a status change.
func (s *bookingService) UpdateBookingStatus(ctx context.Context, actor permissions.Actor, listing *models.Listing, bookingID utils.SixID, proposed models.BookingStatus) (*models.Booking, error) {
	booking, err := s.FindListingBooking(ctx, listing.ID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := permissions.AuthorizeBookingStatus(actor, booking, listing.OwnerID, proposed); err != nil {
		return nil, err
	}
	if err := s.engine.ValidateAndTransition(ctx, booking, proposed); err != nil {
		return nil, err
	}
	return booking, nil
}

// DeleteBooking removes the booking when the listing owner asks, or cancels it
// when its tenant asks before the stay starts. The canceled booking is returned
// for DeleteSoftCancel.
func (s *bookingService) DeleteBooking(ctx context.Context, actor permissions.Actor, listing *models.Listing, bookingID utils.SixID) (permissions.DeleteOutcome, *models.Booking, error) {
	booking, err := s.FindListingBooking(ctx, listing.ID, bookingID)
	if err != nil {
		return permissions.DeleteDenied, nil, err
	}

	outcome, err := permissions.DecideBookingDelete(actor, booking, listing.OwnerID, models.NewDate(s.now()))
	if err != nil {
		return outcome, nil, err
	}

	switch outcome {
	case permissions.DeleteHard:
		if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": booking.ID}); err != nil {
			return permissions.DeleteDenied, nil, fmt.Errorf("error deleting booking %s: %w", booking.ID, err)
		}
		return outcome, nil, nil
	case permissions.DeleteSoftCancel:
		if err := s.engine.ValidateAndTransition(ctx, booking, models.BookingCanceled); err != nil {
			return permissions.DeleteDenied, nil, err
		}
		return outcome, booking, nil
	}
	return permissions.DeleteDenied, nil, apperr.ErrPermissionDenied
}

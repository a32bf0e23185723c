package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

const maxListingTextLength = 255

// ListingInput holds the fields of a new listing.
type ListingInput struct {
	Title       string
	Description string
	Location    string
	Price       *models.Price
	Rooms       int
	Type        models.ListingType
	IsActive    *bool
}

// ListingUpdate holds a partial update. Nil fields are left unchanged.
type ListingUpdate struct {
	Title       *string
	Description *string
	Location    *string
	Price       *models.Price
	Rooms       *int
	Type        *models.ListingType
	IsActive    *bool
}

// ListingFilter narrows ListListings. Zero fields do not filter.
type ListingFilter struct {
	Type     models.ListingType
	Rooms    *int
	Location string
	IsActive *bool
	MinPrice *models.Price
	MaxPrice *models.Price
	Ordering string
}

// listingOrderings maps accepted ordering values to sort documents.
var listingOrderings = map[string]bson.D{
	"created_at":  {{Key: "created_at", Value: 1}},
	"-created_at": {{Key: "created_at", Value: -1}},
	"price":       {{Key: "price", Value: 1}, {Key: "created_at", Value: -1}},
	"-price":      {{Key: "price", Value: -1}, {Key: "created_at", Value: -1}},
	"rooms":       {{Key: "rooms", Value: 1}, {Key: "created_at", Value: -1}},
	"-rooms":      {{Key: "rooms", Value: -1}, {Key: "created_at", Value: -1}},
}

const defaultListingOrdering = "-created_at"

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, ownerID utils.SixID, in ListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error)
	UpdateListing(ctx context.Context, listingID utils.SixID, upd ListingUpdate) (*models.Listing, error)
	DeleteListing(ctx context.Context, listingID utils.SixID) error
}

// listingService implements IListingService.
type listingService struct {
	db *mongo.Database
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database) IListingService {
	return &listingService{db: db}
}

func checkText(verr *apperr.ValidationError, field, value string, required bool) {
	if required && strings.TrimSpace(value) == "" {
		verr.Add(field, "this field is required")
		return
	}
	if len(value) > maxListingTextLength {
		verr.Add(field, fmt.Sprintf("ensure this field has no more than %d characters", maxListingTextLength))
	}
}

func validateListingInput(in ListingInput) error {
	verr := &apperr.ValidationError{}
	checkText(verr, "title", in.Title, true)
	checkText(verr, "location", in.Location, true)
	if in.Price == nil {
		verr.Add("price", "this field is required")
	}
	if in.Rooms < 1 {
		verr.Add("rooms", "ensure this value is greater than or equal to 1")
	}
	if !in.Type.Valid() {
		verr.Add("type", fmt.Sprintf("%q is not a valid choice", in.Type))
	}
	return verr.OrNil()
}

// updateDocument validates upd and returns the $set document for it.
func (upd ListingUpdate) updateDocument() (bson.M, error) {
	verr := &apperr.ValidationError{}
	set := bson.M{}
	if upd.Title != nil {
		checkText(verr, "title", *upd.Title, true)
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Location != nil {
		checkText(verr, "location", *upd.Location, true)
		set["location"] = *upd.Location
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.Rooms != nil {
		if *upd.Rooms < 1 {
			verr.Add("rooms", "ensure this value is greater than or equal to 1")
		}
		set["rooms"] = *upd.Rooms
	}
	if upd.Type != nil {
		if !upd.Type.Valid() {
			verr.Add("type", fmt.Sprintf("%q is not a valid choice", *upd.Type))
		}
		set["type"] = *upd.Type
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return set, nil
}

// filterDocument builds the query for f.
func (f ListingFilter) filterDocument() (bson.M, bson.D, error) {
	verr := &apperr.ValidationError{}
	query := bson.M{}
	if f.Type != "" {
		if !f.Type.Valid() {
			verr.Add("type", fmt.Sprintf("%q is not a valid choice", f.Type))
		}
		query["type"] = f.Type
	}
	if f.Rooms != nil {
		query["rooms"] = *f.Rooms
	}
	if f.Location != "" {
		query["location"] = bson.M{"$regex": regexp.QuoteMeta(f.Location), "$options": "i"}
	}
	if f.IsActive != nil {
		query["is_active"] = *f.IsActive
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		query["price"] = price
	}

	ordering := f.Ordering
	if ordering == "" {
		ordering = defaultListingOrdering
	}
	sort, ok := listingOrderings[ordering]
	if !ok {
		verr.Add("ordering", fmt.Sprintf("%q is not a valid ordering", f.Ordering))
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}
	return query, sort, nil
}

// CreateListing publishes a listing owned by ownerID, who must be an active landlord.
func (s *listingService) CreateListing(ctx context.Context, ownerID utils.SixID, in ListingInput) (*models.Listing, error) {
	if err := validateListingInput(in); err != nil {
		return nil, err
	}

	var owner models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": ownerID, "deleted": false}).Decode(&owner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: owner %s not found", apperr.ErrAuthentication, ownerID)
		}
		return nil, fmt.Errorf("error finding owner %s: %w", ownerID, err)
	}
	if owner.Role != models.RoleLandlord {
		return nil, fmt.Errorf("%w: only landlords can create listings", apperr.ErrPermissionDenied)
	}

	collection := s.db.Collection(db.ListingsCollection)
	now := time.Now().UTC()
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	var newListing *models.Listing
	operation := func() error {
		newListing = &models.Listing{
			ID:          utils.NewSixID(),
			OwnerID:     ownerID,
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			Price:       *in.Price,
			Rooms:       in.Rooms,
			Type:        in.Type,
			IsActive:    isActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("error inserting listing for user %s: %w", ownerID, err)
	}
	return newListing, nil
}

// FindListingByID retrieves a single listing.
// Returns mongo.ErrNoDocuments if it does not exist.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing %s: %w", listingID, err)
	}
	return &listing, nil
}

// ListListings returns listings matching filter in the requested order.
func (s *listingService) ListListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error) {
	query, sort, err := filter.filterDocument()
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, query, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("error listing listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("error decoding listings: %w", err)
	}
	return listings, nil
}

// UpdateListing applies upd and returns the updated listing. Ownership is checked by the caller.
func (s *listingService) UpdateListing(ctx context.Context, listingID utils.SixID, upd ListingUpdate) (*models.Listing, error) {
	set, err := upd.updateDocument()
	if err != nil {
		return nil, err
	}
	set["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Listing
	err = s.db.Collection(db.ListingsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": listingID},
		bson.M{"$set": set},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating listing %s: %w", listingID, err)
	}
	return &updated, nil
}

// DeleteListing removes a listing together with its bookings and reviews.
func (s *listingService) DeleteListing(ctx context.Context, listingID utils.SixID) error {
	res, err := s.db.Collection(db.ListingsCollection).DeleteOne(ctx, bson.M{"_id": listingID})
	if err != nil {
		return fmt.Errorf("error deleting listing %s: %w", listingID, err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	children := bson.M{"listing_id": listingID}
	bookings, err := s.db.Collection(db.BookingsCollection).DeleteMany(ctx, children)
	if err != nil {
		return fmt.Errorf("error deleting bookings of listing %s: %w", listingID, err)
	}
	reviews, err := s.db.Collection(db.ReviewsCollection).DeleteMany(ctx, children)
	if err != nil {
		return fmt.Errorf("error deleting reviews of listing %s: %w", listingID, err)
	}
	log.Printf("Deleted listing %s with %d bookings and %d reviews", listingID, bookings.DeletedCount, reviews.DeletedCount)
	return nil
}

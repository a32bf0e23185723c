package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"greendrake/rentals/internal/api/handlers"
	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/auth"
	"greendrake/rentals/internal/config"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
	"greendrake/rentals/internal/services"
	"greendrake/rentals/internal/utils"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, ownerID utils.SixID, in services.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) ListListings(ctx context.Context, filter services.ListingFilter) ([]models.Listing, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID utils.SixID, upd services.ListingUpdate) (*models.Listing, error) {
	args := m.Called(ctx, listingID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID utils.SixID) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

// MockBookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, actor permissions.Actor, listing *models.Listing, start, end models.Date) (*models.Booking, error) {
	args := m.Called(ctx, actor, listing, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) FindListingBooking(ctx context.Context, listingID, bookingID utils.SixID) (*models.Booking, error) {
	args := m.Called(ctx, listingID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) ListBookingsForActor(ctx context.Context, actor permissions.Actor) ([]models.Booking, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingService) ListBookingsForListing(ctx context.Context, actor permissions.Actor, listing *models.Listing) ([]models.Booking, error) {
	args := m.Called(ctx, actor, listing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingService) UpdateBookingStatus(ctx context.Context, actor permissions.Actor, listing *models.Listing, bookingID utils.SixID, proposed models.BookingStatus) (*models.Booking, error) {
	args := m.Called(ctx, actor, listing, bookingID, proposed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) DeleteBooking(ctx context.Context, actor permissions.Actor, listing *models.Listing, bookingID utils.SixID) (permissions.DeleteOutcome, *models.Booking, error) {
	args := m.Called(ctx, actor, listing, bookingID)
	var booking *models.Booking
	if args.Get(1) != nil {
		booking = args.Get(1).(*models.Booking)
	}
	return args.Get(0).(permissions.DeleteOutcome), booking, args.Error(2)
}

func (m *MockBookingService) FindConfirmedBooking(ctx context.Context, userID, listingID utils.SixID) (*models.Booking, error) {
	args := m.Called(ctx, userID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

// MockReviewService
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) CreateReview(ctx context.Context, actor permissions.Actor, listingID utils.SixID, in services.ReviewInput) (*models.Review, error) {
	args := m.Called(ctx, actor, listingID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) FindListingReview(ctx context.Context, listingID, reviewID utils.SixID) (*models.Review, error) {
	args := m.Called(ctx, listingID, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) ListReviewsForListing(ctx context.Context, listingID utils.SixID) ([]models.Review, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockReviewService) UpdateReview(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID, upd services.ReviewUpdate) (*models.Review, error) {
	args := m.Called(ctx, actor, listingID, reviewID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) DeleteReview(ctx context.Context, actor permissions.Actor, listingID, reviewID utils.SixID) error {
	args := m.Called(ctx, actor, listingID, reviewID)
	return args.Error(0)
}

func (m *MockReviewService) RatingSummary(ctx context.Context, listingID utils.SixID) (*models.RatingSummary, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Welcome(ctx context.Context, user *models.User, appName string) {
	m.Called(ctx, user, appName)
}

func (m *MockNotifier) BookingChanged(ctx context.Context, booking *models.Booking) {
	m.Called(ctx, booking)
}

// memoryRevocations is an in-memory auth.RevocationStore.
type memoryRevocations struct {
	revoked map[string]bool
}

func (m *memoryRevocations) Revoke(_ context.Context, jti string, _ time.Time) error {
	m.revoked[jti] = true
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return m.revoked[jti], nil
}

// --- Fixture ---

const testSecret = "handler-secret"

type apiFixture struct {
	cfg         *config.Config
	tokens      *auth.TokenManager
	revocations *memoryRevocations
	users       *MockUserService
	listings    *MockListingService
	bookings    *MockBookingService
	reviews     *MockReviewService
	notifier    *MockNotifier
	router      *gin.Engine
}

func newAPIFixture() *apiFixture {
	gin.SetMode(gin.TestMode)
	f := &apiFixture{
		cfg:         &config.Config{AppName: "Rentals"},
		revocations: &memoryRevocations{revoked: map[string]bool{}},
		users:       new(MockUserService),
		listings:    new(MockListingService),
		bookings:    new(MockBookingService),
		reviews:     new(MockReviewService),
		notifier:    new(MockNotifier),
	}
	f.tokens = auth.NewTokenManager(testSecret, 5*time.Minute, time.Hour, f.revocations)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthGate(f.tokens, middleware.CookieConfigFrom(f.cfg)))
	handlers.RegisterRoutes(v1, handlers.Handlers{
		Users:    handlers.NewUserHandler(f.cfg, f.users, f.tokens, f.notifier),
		Listings: handlers.NewListingHandler(f.listings, f.bookings, f.reviews),
		Bookings: handlers.NewBookingHandler(f.listings, f.bookings, f.notifier),
		Reviews:  handlers.NewReviewHandler(f.listings, f.reviews),
	}, func(c *gin.Context) { c.Next() })
	f.router = r
	return f
}

func newUser(role models.Role) *models.User {
	return &models.User{
		Base:     models.NewBase(),
		Username: string(role) + "-user",
		Email:    string(role) + "@example.com",
		Role:     role,
		IsActive: true,
	}
}

func actorOf(u *models.User) permissions.Actor {
	return permissions.Actor{UserID: u.ID, Role: u.Role, IsAdmin: u.IsAdmin, Authenticated: true}
}

// do sends a request, authenticated as user when it is not nil.
func (f *apiFixture) do(t *testing.T, method, path, body string, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != nil {
		pair, err := f.tokens.IssuePair(auth.SubjectOf(user))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.Access.Token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func responseCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}

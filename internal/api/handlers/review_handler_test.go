package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/services"
	"greendrake/rentals/internal/utils"
)

type reviewScenario struct {
	f       *apiFixture
	tenant  *models.User
	listing *models.Listing
	review  *models.Review
}

func newReviewScenario() *reviewScenario {
	f := newAPIFixture()
	s := &reviewScenario{f: f, tenant: newUser(models.RoleTenant)}
	s.listing = newListing(newUser(models.RoleLandlord))
	s.review = &models.Review{ID: utils.NewSixID(), ListingID: s.listing.ID, UserID: s.tenant.ID, Rating: 5, Comment: "Lovely"}
	f.listings.On("FindListingByID", mock.Anything, s.listing.ID).Return(s.listing, nil).Maybe()
	return s
}

func (s *reviewScenario) reviewsPath() string {
	return "/v1/listings/" + s.listing.ID.String() + "/reviews"
}

func TestReviewHandler_Create(t *testing.T) {
	s := newReviewScenario()
	s.f.reviews.On("CreateReview", mock.Anything, actorOf(s.tenant), s.listing.ID, services.ReviewInput{Rating: 5, Comment: "Lovely"}).
		Return(s.review, nil)

	w := s.f.do(t, http.MethodPost, s.reviewsPath(), `{"rating":5,"comment":"Lovely"}`, s.tenant)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), s.review.ID.String())
}

func TestReviewHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"no confirmed booking", apperr.ErrNotEligible, http.StatusBadRequest, apperr.ErrNotEligible.Error()},
		{"second review", apperr.ErrDuplicateReview, http.StatusConflict, apperr.ErrDuplicateReview.Error()},
		{"rating out of range", apperr.NewValidationError("rating", "ensure this value is between 1 and 5"), http.StatusBadRequest, "rating"},
		{"store failure", fmt.Errorf("error inserting review: %w", assert.AnError), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newReviewScenario()
			s.f.reviews.On("CreateReview", mock.Anything, mock.Anything, s.listing.ID, mock.Anything).Return(nil, tt.err)

			w := s.f.do(t, http.MethodPost, s.reviewsPath(), `{"rating":9}`, s.tenant)

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}
}

func TestReviewHandler_Create_MissingRating(t *testing.T) {
	s := newReviewScenario()

	w := s.f.do(t, http.MethodPost, s.reviewsPath(), `{"comment":"no stars"}`, s.tenant)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"rating"`)
	s.f.reviews.AssertNotCalled(t, "CreateReview", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewHandler_ReadRequiresAuth(t *testing.T) {
	s := newReviewScenario()
	s.f.reviews.On("ListReviewsForListing", mock.Anything, s.listing.ID).Return([]models.Review{*s.review}, nil)
	s.f.reviews.On("FindListingReview", mock.Anything, s.listing.ID, s.review.ID).Return(s.review, nil)

	w := s.f.do(t, http.MethodGet, s.reviewsPath(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	reader := newUser(models.RoleTenant)
	w = s.f.do(t, http.MethodGet, s.reviewsPath(), "", reader)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.f.do(t, http.MethodGet, s.reviewsPath()+"/"+s.review.ID.String(), "", reader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Lovely")
}

func TestReviewHandler_UpdateAndDelete(t *testing.T) {
	s := newReviewScenario()
	stranger := newUser(models.RoleTenant)
	path := s.reviewsPath() + "/" + s.review.ID.String()

	s.f.reviews.On("UpdateReview", mock.Anything, actorOf(stranger), s.listing.ID, s.review.ID, mock.Anything).
		Return(nil, fmt.Errorf("%w: only the author can change a review", apperr.ErrPermissionDenied))
	w := s.f.do(t, http.MethodPatch, path, `{"rating":1}`, stranger)
	assert.Equal(t, http.StatusForbidden, w.Code)

	updated := *s.review
	updated.Rating = 4
	s.f.reviews.On("UpdateReview", mock.Anything, actorOf(s.tenant), s.listing.ID, s.review.ID, mock.MatchedBy(func(upd services.ReviewUpdate) bool {
		return upd.Rating != nil && *upd.Rating == 4 && upd.Comment == nil
	})).Return(&updated, nil)
	w = s.f.do(t, http.MethodPatch, path, `{"rating":4}`, s.tenant)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rating":4`)

	s.f.reviews.On("DeleteReview", mock.Anything, actorOf(s.tenant), s.listing.ID, s.review.ID).Return(nil)
	w = s.f.do(t, http.MethodDelete, path, "", s.tenant)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReviewHandler_UnknownListing(t *testing.T) {
	s := newReviewScenario()
	other := utils.NewSixID()
	s.f.listings.On("FindListingByID", mock.Anything, other).Return(nil, mongo.ErrNoDocuments)

	w := s.f.do(t, http.MethodGet, "/v1/listings/"+other.String()+"/reviews", "", s.tenant)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

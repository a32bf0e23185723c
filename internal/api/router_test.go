package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"greendrake/rentals/internal/api"
	"greendrake/rentals/internal/models"
)

type MockTemplateStore struct {
	mock.Mock
}

func (m *MockTemplateStore) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	return m.Called(ctx, template).Error(0)
}

func (m *MockTemplateStore) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	return m.Called(ctx, templateID, locale).Error(0)
}

func callService(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServiceRouter_Shutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := api.SetupServiceRouter(nil, new(MockTemplateStore), shutdown)

	w := callService(r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, shutdown, 1)

	// A second request must not block on the full channel.
	w = callService(r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceRouter_EmailTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := new(MockTemplateStore)
	r := api.SetupServiceRouter(nil, store, make(chan struct{}, 1))

	store.On("SaveTemplate", mock.Anything, mock.MatchedBy(func(tmpl *models.EmailTemplate) bool {
		return tmpl.TemplateID == "booking_confirmed" && tmpl.Locale == "de-DE" && tmpl.Subject == "Bestätigt"
	})).Return(nil)
	w := callService(r, `{"method":"saveEmailTemplate","arguments":{"template_id":"booking_confirmed","locale":"de-DE","subject":"Bestätigt","body":"{{.listing_title}}"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = callService(r, `{"method":"saveEmailTemplate","arguments":{"subject":"no id"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.On("DeleteTemplate", mock.Anything, "booking_confirmed", "de-DE").Return(nil)
	w = callService(r, `{"method":"deleteEmailTemplate","arguments":["booking_confirmed","de-DE"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	store.AssertExpectations(t)
}

func TestServiceRouter_BadRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := api.SetupServiceRouter(nil, new(MockTemplateStore), make(chan struct{}, 1))

	assert.Equal(t, http.StatusBadRequest, callService(r, `not json`).Code)
	assert.Equal(t, http.StatusNotFound, callService(r, `{"method":"dropDatabase"}`).Code)
	assert.Equal(t, http.StatusBadRequest, callService(r, `{"method":"getTestEmail","arguments":["only-one"]}`).Code)
}

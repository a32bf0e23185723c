package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/services"
	"greendrake/rentals/internal/utils"
)

var jsonFieldNamesOnce sync.Once

// useJSONFieldNames makes validator report fields by their JSON names.
func useJSONFieldNames() {
	jsonFieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("ensure this value is at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("ensure this value is at most %s", fe.Param())
	}
	return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
}

// bindJSON decodes the request body into obj and writes a 400 response on failure.
// Struct tag violations are reported per field, like service-level validation errors.
func bindJSON(c *gin.Context, obj interface{}) bool {
	useJSONFieldNames()
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fields})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
	return false
}

// parseIDParam reads a SixID path parameter and writes a 400 response if it is malformed.
func parseIDParam(c *gin.Context, name, label string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s ID format", label)})
		return utils.SixID{}, false
	}
	return id, true
}

// respondError writes the HTTP response for a service error.
// notFound is the message used when the error is mongo.ErrNoDocuments.
func respondError(c *gin.Context, err error, notFound string) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": verr.Fields})
	case errors.Is(err, apperr.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided"})
	case errors.Is(err, apperr.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action"})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotEligible):
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.ErrNotEligible.Error()})
	case errors.Is(err, apperr.ErrDateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": apperr.ErrDateConflict.Error()})
	case errors.Is(err, apperr.ErrDuplicateReview):
		c.JSON(http.StatusConflict, gin.H{"error": apperr.ErrDuplicateReview.Error()})
	case errors.Is(err, services.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Validation failed", "fields": gin.H{"email": services.ErrEmailExists.Error()}})
	case errors.Is(err, services.ErrUsernameExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Validation failed", "fields": gin.H{"username": services.ErrUsernameExists.Error()}})
	case errors.Is(err, services.ErrBookingChanged):
		c.JSON(http.StatusConflict, gin.H{"error": "Booking was modified concurrently, please retry"})
	case errors.Is(err, db.ErrLockTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Listing is busy, please retry"})
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	default:
		_ = c.Error(err)
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

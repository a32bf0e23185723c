package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/api/handlers"
	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/auth"
	"greendrake/rentals/internal/config"
	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/email"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, database *mongo.Database, tokens *auth.TokenManager, locker db.Locker, notifier handlers.INotifier) *gin.Engine {
	// Initialize services needed by API handlers
	userService := services.NewUserService(database, cfg)
	listingService := services.NewListingService(database)
	bookingService := services.NewBookingService(database, locker, cfg.BookingLockWait)
	reviewService := services.NewReviewService(database, services.NewReviewEligibility(bookingService))

	r := gin.Default()

	// Rate limiting applies to login and registration only
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthGate(tokens, middleware.CookieConfigFrom(cfg)))
	handlers.RegisterRoutes(v1, handlers.Handlers{
		Users:    handlers.NewUserHandler(cfg, userService, tokens, notifier),
		Listings: handlers.NewListingHandler(listingService, bookingService, reviewService),
		Bookings: handlers.NewBookingHandler(listingService, bookingService, notifier),
		Reviews:  handlers.NewReviewHandler(listingService, reviewService),
	}, rateLimiter.Limit())

	return r
}

// EmailTemplateStore is the template administration used by the service API.
type EmailTemplateStore interface {
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
	DeleteTemplate(ctx context.Context, templateID string, locale string) error
}

// SetupServiceRouter configures and returns the service Gin engine.
// It is bound to SERVICE_API_PORT and meant for operators and end-to-end tests only.
func SetupServiceRouter(rdb *redis.Client, templates EmailTemplateStore, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}

		case "getTestEmail":
			var args []string // Expect ["template_id", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, email]"})
				return
			}
			getTestEmail(c, rdb, email.MockEmailKey(args[1], args[0]))

		case "saveEmailTemplate":
			var tmpl models.EmailTemplate
			if err := json.Unmarshal(req.Arguments, &tmpl); err != nil || tmpl.TemplateID == "" || tmpl.Locale == "" {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected template object with template_id and locale"})
				return
			}
			if err := templates.SaveTemplate(c.Request.Context(), &tmpl); err != nil {
				log.Printf("Service API: Error saving email template %s/%s: %v", tmpl.TemplateID, tmpl.Locale, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save template"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Template saved"})

		case "deleteEmailTemplate":
			var args []string // Expect ["template_id", "locale"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, locale]"})
				return
			}
			if err := templates.DeleteTemplate(c.Request.Context(), args[0], args[1]); err != nil {
				log.Printf("Service API: Error deleting email template %s/%s: %v", args[0], args[1], err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete template"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Template deleted"})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail polls Redis briefly for an email captured by email.RedisSender and
// returns it, deleting the key.
func getTestEmail(c *gin.Context, rdb *redis.Client, redisKey string) {
	var emailJsonData string
	var getErr error
	found := false
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	for i := 0; i < 10; i++ { // Poll up to ~2 seconds
		emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
		if getErr == nil {
			found = true
			rdb.Del(ctx, redisKey)
			break
		}
		if getErr != redis.Nil {
			log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
		return
	}

	var emailData map[string]interface{}
	if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
		log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
}

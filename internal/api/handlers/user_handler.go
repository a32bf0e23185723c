package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/apperr"
	"greendrake/rentals/internal/auth"
	"greendrake/rentals/internal/config"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/services"
)

// UserHandler serves registration, login and the account endpoints.
type UserHandler struct {
	cfg         *config.Config
	userService services.IUserService
	tokens      *auth.TokenManager
	cookies     middleware.CookieConfig
	notifier    INotifier
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(cfg *config.Config, userService services.IUserService, tokens *auth.TokenManager, notifier INotifier) *UserHandler {
	return &UserHandler{
		cfg:         cfg,
		userService: userService,
		tokens:      tokens,
		cookies:     middleware.CookieConfigFrom(cfg),
		notifier:    notifier,
	}
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Password   string `json:"password"`
	RePassword string `json:"re_password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// signIn issues a token pair for user and sets both cookies, replacing whatever
// the auth gate queued for this response.
func (h *UserHandler) signIn(c *gin.Context, user *models.User) bool {
	pair, err := h.tokens.IssuePair(auth.SubjectOf(user))
	if err != nil {
		respondError(c, err, "")
		return false
	}
	middleware.DiscardPendingCookies(c)
	h.cookies.SetPair(c.Writer, pair)
	return true
}

// Register handles POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		RePassword: req.RePassword,
		Role:       req.Role,
	})
	if err != nil {
		respondError(c, err, "")
		return
	}

	if !h.signIn(c, user) {
		return
	}
	h.notifier.Welcome(c.Request.Context(), user, h.cfg.AppName)
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /v1/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, err, "")
		return
	}

	if !h.signIn(c, user) {
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout handles POST|GET /v1/users/logout. The refresh token is revoked and both cookies expire.
func (h *UserHandler) Logout(c *gin.Context) {
	if refresh, err := c.Cookie(middleware.RefreshCookieName); err == nil {
		if err := h.tokens.Revoke(c.Request.Context(), refresh); err != nil {
			log.Printf("Error revoking refresh token on logout: %v", err)
		}
	}
	middleware.DiscardPendingCookies(c)
	h.cookies.Clear(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	user, err := h.userService.FindByID(c.Request.Context(), actor.UserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(c, apperr.ErrAuthentication, "")
			return
		}
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Hello, authenticated user!",
		"user":    user,
	})
}

// ListUsers handles GET /v1/users (admin only).
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err, "")
		return
	}
	if len(users) == 0 {
		c.JSON(http.StatusNoContent, []models.User{})
		return
	}
	c.JSON(http.StatusOK, users)
}

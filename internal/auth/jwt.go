package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// TokenType distinguishes access from refresh tokens signed with the same key.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is presented as access or vice versa.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
	IsAdmin   bool        `json:"is_admin"`
	TokenType TokenType   `json:"token_type"`
	jwt.RegisteredClaims
}

// Subject is the identity a token pair is issued for.
type Subject struct {
	UserID  utils.SixID
	Role    models.Role
	IsAdmin bool
}

// SubjectOf returns the token subject for a user.
func SubjectOf(u *models.User) Subject {
	return Subject{UserID: u.ID, Role: u.Role, IsAdmin: u.IsAdmin}
}

// ParsedUserID decodes the user_id claim.
func (c *Claims) ParsedUserID() (utils.SixID, error) {
	return utils.ParseSixID(c.UserID)
}

// Expiry returns the exp claim as a time, or the zero time if absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// GenerateJWT signs a token of the given type for subject, valid for ttl from now.
func GenerateJWT(subject Subject, tokenType TokenType, secretKey string, now time.Time, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		UserID:    subject.UserID.String(),
		Role:      subject.Role,
		IsAdmin:   subject.IsAdmin,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, claims, nil
}

// ValidateJWT verifies signature, algorithm, expiry and token type, and returns the claims.
func ValidateJWT(tokenString string, tokenType TokenType, secretKey string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrWrongTokenType, tokenType, claims.TokenType)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("invalid JWT: unknown role %q", claims.Role)
	}
	if _, err := claims.ParsedUserID(); err != nil {
		return nil, fmt.Errorf("invalid JWT user_id: %w", err)
	}
	return claims, nil
}

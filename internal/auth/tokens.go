package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrRefreshInvalid is returned when a refresh token is expired, malformed or revoked.
var ErrRefreshInvalid = errors.New("refresh token invalid")

// RevocationStore records refresh tokens that must no longer be honoured.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// IssuedToken is a signed token together with its claims.
type IssuedToken struct {
	Token  string
	Claims *Claims
}

// ExpiresAt is the token's exp claim.
func (t *IssuedToken) ExpiresAt() time.Time {
	return t.Claims.Expiry()
}

// TokenPair is what login and registration hand out.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// TokenManager issues, validates and refreshes access/refresh tokens.
// It holds no per-request state and is safe for concurrent use.
type TokenManager struct {
	secret      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// NewTokenManager creates a TokenManager. revocations may be nil, in which
// case refresh tokens are only checked for signature and expiry.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, revocations RevocationStore) *TokenManager {
	return &TokenManager{
		secret:      secret,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		revocations: revocations,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (m *TokenManager) SetClock(now func() time.Time) {
	m.now = now
}

// IssuePair signs a fresh access and refresh token for subject.
func (m *TokenManager) IssuePair(subject Subject) (*TokenPair, error) {
	now := m.now()
	access, accessClaims, err := GenerateJWT(subject, TokenTypeAccess, m.secret, now, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := GenerateJWT(subject, TokenTypeRefresh, m.secret, now, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		Access:  IssuedToken{Token: access, Claims: accessClaims},
		Refresh: IssuedToken{Token: refresh, Claims: refreshClaims},
	}, nil
}

// Validate checks an access token.
func (m *TokenManager) Validate(access string) (*Claims, error) {
	return ValidateJWT(access, TokenTypeAccess, m.secret, m.now)
}

// Refresh issues a new access token for the subject of a valid, unrevoked refresh token.
func (m *TokenManager) Refresh(ctx context.Context, refresh string) (*IssuedToken, error) {
	claims, err := m.validateRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.ParsedUserID()
	subject := Subject{UserID: userID, Role: claims.Role, IsAdmin: claims.IsAdmin}
	token, accessClaims, err := GenerateJWT(subject, TokenTypeAccess, m.secret, m.now(), m.accessTTL)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, Claims: accessClaims}, nil
}

func (m *TokenManager) validateRefresh(ctx context.Context, refresh string) (*Claims, error) {
	claims, err := ValidateJWT(refresh, TokenTypeRefresh, m.secret, m.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}
	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Fail closed: an unverifiable refresh token is not honoured.
			return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrRefreshInvalid)
		}
	}
	return claims, nil
}

// Revoke invalidates a refresh token until its expiry. Invalid tokens are ignored.
func (m *TokenManager) Revoke(ctx context.Context, refresh string) error {
	if refresh == "" || m.revocations == nil {
		return nil
	}
	claims, err := ValidateJWT(refresh, TokenTypeRefresh, m.secret, m.now)
	if err != nil {
		return nil
	}
	return m.revocations.Revoke(ctx, claims.ID, claims.Expiry())
}

// ResolutionState is the outcome of resolving a request's credentials.
type ResolutionState int

const (
	// StateNoToken: neither credential was presented.
	StateNoToken ResolutionState = iota
	// StateValid: the access token was valid and is used as-is.
	StateValid
	// StateRefreshed: a new access token was minted and must be written back.
	StateRefreshed
	// StateAnonymous: credentials were presented but unusable and must be cleared.
	StateAnonymous
)

func (s ResolutionState) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateValid:
		return "valid"
	case StateRefreshed:
		return "refreshed"
	case StateAnonymous:
		return "anonymous"
	}
	return fmt.Sprintf("ResolutionState(%d)", int(s))
}

// Resolution is the explicit result of the inbound credential check.
// Claims is nil unless the request is authenticated; NewAccess is set only
// in StateRefreshed.
type Resolution struct {
	State     ResolutionState
	Claims    *Claims
	NewAccess *IssuedToken
}

// Authenticated reports whether the request carries a usable identity.
func (r Resolution) Authenticated() bool {
	return r.Claims != nil
}

// ClearCredentials reports whether stored credentials should be discarded.
func (r Resolution) ClearCredentials() bool {
	return r.State == StateAnonymous
}

// Resolve decides which credential a request proceeds with:
// a valid access token is used as-is; otherwise the refresh token, if any,
// is exchanged for a new access token; if that fails both are discarded.
func (m *TokenManager) Resolve(ctx context.Context, access, refresh string) Resolution {
	if access == "" && refresh == "" {
		return Resolution{State: StateNoToken}
	}

	if access != "" {
		claims, err := m.Validate(access)
		if err == nil {
			return Resolution{State: StateValid, Claims: claims}
		}
	}

	if refresh == "" {
		return Resolution{State: StateAnonymous}
	}

	issued, err := m.Refresh(ctx, refresh)
	if err != nil {
		log.Printf("Token refresh failed: %v", err)
		return Resolution{State: StateAnonymous}
	}
	return Resolution{State: StateRefreshed, Claims: issued.Claims, NewAccess: issued}
}

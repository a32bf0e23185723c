package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"greendrake/rentals/internal/auth"
	"greendrake/rentals/internal/config"
	"greendrake/rentals/internal/permissions"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieConfig controls the attributes of the credential cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// CookieConfigFrom builds the cookie settings from application config.
func CookieConfigFrom(cfg *config.Config) CookieConfig {
	return CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}
}

func (cc CookieConfig) cookie(name, value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cc.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   cc.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (cc CookieConfig) setToken(w http.ResponseWriter, name string, token *auth.IssuedToken) {
	expires := token.ExpiresAt()
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, cc.cookie(name, token.Token, expires, maxAge))
}

// SetAccess writes the access token cookie.
func (cc CookieConfig) SetAccess(w http.ResponseWriter, token *auth.IssuedToken) {
	cc.setToken(w, AccessCookieName, token)
}

// SetPair writes both credential cookies.
func (cc CookieConfig) SetPair(w http.ResponseWriter, pair *auth.TokenPair) {
	cc.setToken(w, AccessCookieName, &pair.Access)
	cc.setToken(w, RefreshCookieName, &pair.Refresh)
}

// Clear expires both credential cookies.
func (cc CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, cc.cookie(AccessCookieName, "", time.Unix(0, 0), -1))
	http.SetCookie(w, cc.cookie(RefreshCookieName, "", time.Unix(0, 0), -1))
}

// cookieWriter applies pending cookie changes just before the response headers are sent.
type cookieWriter struct {
	gin.ResponseWriter
	apply   func(http.ResponseWriter)
	applied bool
}

func (w *cookieWriter) flush() {
	if w.applied {
		return
	}
	w.applied = true
	w.apply(w.ResponseWriter)
}

func (w *cookieWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *cookieWriter) WriteHeaderNow() {
	w.flush()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *cookieWriter) Write(data []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(data)
}

func (w *cookieWriter) WriteString(s string) (int, error) {
	w.flush()
	return w.ResponseWriter.WriteString(s)
}

// accessToken reads the access cookie, falling back to an Authorization: Bearer header.
func accessToken(c *gin.Context) string {
	if token, err := c.Cookie(AccessCookieName); err == nil && token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// AuthGate resolves the request's credentials before any handler runs.
// A valid access token is used as-is. Otherwise a valid refresh token mints a new
// access token, which is attached to the request and set as a cookie on the response.
// If neither works the request proceeds anonymously and both cookies are expired.
// AuthGate never rejects a request; handlers decide whether anonymity is acceptable.
func AuthGate(tokens *auth.TokenManager, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		refresh, _ := c.Cookie(RefreshCookieName)
		res := tokens.Resolve(c.Request.Context(), accessToken(c), refresh)

		if res.Authenticated() {
			userID, err := res.Claims.ParsedUserID()
			if err == nil {
				setActor(c, permissions.Actor{
					UserID:        userID,
					Role:          res.Claims.Role,
					IsAdmin:       res.Claims.IsAdmin,
					Authenticated: true,
				})
			}
		}

		var apply func(http.ResponseWriter)
		switch {
		case res.State == auth.StateRefreshed:
			apply = func(w http.ResponseWriter) { cookies.SetAccess(w, res.NewAccess) }
		case res.ClearCredentials():
			apply = cookies.Clear
		default:
			c.Next()
			return
		}

		w := &cookieWriter{ResponseWriter: c.Writer, apply: apply}
		c.Writer = w
		c.Next()
		if !w.Written() {
			w.flush()
		}
	}
}

// DiscardPendingCookies drops any cookie change AuthGate queued for this response.
// Handlers that set or clear credentials themselves call it first.
func DiscardPendingCookies(c *gin.Context) {
	if w, ok := c.Writer.(*cookieWriter); ok {
		w.applied = true
	}
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/scitran/nims-gateway/pkg/types"
)

const defaultSessionDuration = 24 * time.Hour

// Claims contains the JWT claims for a user session
type Claims struct {
	SessionID string `json:"sid"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// SessionManager handles JWT session cookie creation and validation
type SessionManager struct {
	secret     []byte
	cookieName string
	duration   time.Duration
}

// NewSessionManager creates a new session manager
func NewSessionManager(cfg types.AuthConfig) *SessionManager {
	secret := cfg.SessionKey
	if secret == "" {
		// Generate random key (sessions won't persist across restarts)
		b := make([]byte, 32)
		rand.Read(b)
		secret = hex.EncodeToString(b)
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "nims_session"
	}
	duration := cfg.SessionDuration
	if duration <= 0 {
		duration = defaultSessionDuration
	}
	return &SessionManager{
		secret:     []byte(secret),
		cookieName: cookieName,
		duration:   duration,
	}
}

// Duration returns the configured session lifetime
func (s *SessionManager) Duration() time.Duration {
	return s.duration
}

// Create generates a new JWT session token for the given session record
func (s *SessionManager) Create(session *types.Session) (string, error) {
	claims := Claims{
		SessionID: session.ID,
		Login:     session.User.Login,
		Email:     session.User.Email,
		Name:      session.User.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Issuer:    "nims-gateway",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses and validates a JWT token
func (s *SessionManager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Get retrieves and validates the session claims from request cookies
func (s *SessionManager) Get(c echo.Context) *Claims {
	cookie, err := c.Cookie(s.cookieName)
	if err != nil {
		return nil
	}
	claims, err := s.Validate(cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}

// Set stores the session token in a cookie
func (s *SessionManager) Set(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.duration.Seconds()),
	})
}

// Clear removes the session cookie
func (s *SessionManager) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:   s.cookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

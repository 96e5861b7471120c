package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scitran/nims-gateway/pkg/types"
)

type ctxKey int

const userKey ctxKey = iota

var ErrAuthRequired = errors.New("authentication required")

// --- Context get/set ---

func WithUser(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) *types.User {
	user, _ := ctx.Value(userKey).(*types.User)
	return user
}

func IsAuthenticated(ctx context.Context) bool { return UserFromContext(ctx) != nil }

func RemoteUser(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.Login
	}
	return ""
}

// Middleware resolves the session cookie into a user on every request without
// requiring one. Handlers downstream decide whether auth is mandatory.
type Middleware struct {
	session  *SessionManager
	store    SessionStore
	loginURL string // absolute path of the login endpoint
}

func NewMiddleware(session *SessionManager, store SessionStore, loginURL string) *Middleware {
	return &Middleware{session: session, store: store, loginURL: loginURL}
}

// Resolve attaches the authenticated user to the request context when a valid,
// unrevoked session cookie is present.
func (m *Middleware) Resolve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := m.session.Get(c)
			if claims == nil {
				return next(c)
			}

			session, err := m.store.Get(c.Request().Context(), claims.SessionID)
			if err != nil {
				var notFound *types.ErrSessionNotFound
				if !errors.As(err, &notFound) {
					log.Warn().Err(err).Msg("session store lookup failed")
				}
				// Revoked or unknown session: drop the cookie
				m.session.Clear(c)
				return next(c)
			}

			ctx := WithUser(c.Request().Context(), &session.User)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireUser rejects unauthenticated requests. Browser clients are sent
// through the SSO login flow with the original URL as the return target; API
// clients get a plain 401.
func (m *Middleware) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsAuthenticated(c.Request().Context()) {
				return next(c)
			}
			return m.Challenge(c)
		}
	}
}

// Challenge responds to an unauthenticated request: browsers are redirected
// into the login flow, everything else gets a 401.
func (m *Middleware) Challenge(c echo.Context) error {
	if wantsHTML(c.Request()) {
		target := c.Request().URL.RequestURI()
		return c.Redirect(http.StatusFound, m.loginURL+"?came_from="+url.QueryEscape(target))
	}
	return echo.NewHTTPError(http.StatusUnauthorized, ErrAuthRequired.Error())
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

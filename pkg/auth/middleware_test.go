package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scitran/nims-gateway/pkg/types"
)

type mwFixture struct {
	e       *echo.Echo
	session *SessionManager
	store   SessionStore
}

func newMWFixture(t *testing.T) *mwFixture {
	t.Helper()
	session := NewSessionManager(types.AuthConfig{SessionKey: "secret", CookieName: "nims_session"})
	store := NewMemorySessionStore()
	mw := NewMiddleware(session, store, "/nims/login")

	e := echo.New()
	g := e.Group("/nims", mw.Resolve())
	g.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, RemoteUser(c.Request().Context()))
	})
	gated := g.Group("/auth", mw.RequireUser())
	gated.GET("/status", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok "+RemoteUser(c.Request().Context()))
	})

	return &mwFixture{e: e, session: session, store: store}
}

func (f *mwFixture) cookie(t *testing.T) *http.Cookie {
	t.Helper()
	session := testSession()
	require.NoError(t, f.store.Save(t.Context(), session))
	token, err := f.session.Create(session)
	require.NoError(t, err)
	return &http.Cookie{Name: "nims_session", Value: token}
}

func TestResolveWithoutCookie(t *testing.T) {
	f := newMWFixture(t)

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nims/whoami", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResolveWithCookie(t *testing.T) {
	f := newMWFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/nims/whoami", nil)
	req.AddCookie(f.cookie(t))
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jdoe", rec.Body.String())
}

func TestRequireUserRejectsAPIClients(t *testing.T) {
	f := newMWFixture(t)

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nims/auth/status", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserRedirectsBrowsers(t *testing.T) {
	f := newMWFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/nims/auth/status?tab=1", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "/nims/login?came_from=")
	assert.Contains(t, location, "%2Fnims%2Fauth%2Fstatus%3Ftab%3D1")
}

func TestRequireUserPassesAuthenticated(t *testing.T) {
	f := newMWFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/nims/auth/status", nil)
	req.AddCookie(f.cookie(t))
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok jdoe", rec.Body.String())
}

func TestRevokedSessionIsUnauthenticated(t *testing.T) {
	f := newMWFixture(t)
	cookie := f.cookie(t)

	// revoke server-side; the still-valid JWT must no longer authenticate
	require.NoError(t, f.store.Delete(t.Context(), "sess-1"))

	req := httptest.NewRequest(http.MethodGet, "/nims/auth/status", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGarbageCookieIgnored(t *testing.T) {
	f := newMWFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/nims/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "nims_session", Value: "not-a-jwt"})
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scitran/nims-gateway/pkg/auth"
	"github.com/scitran/nims-gateway/pkg/types"
)

type upstreamCapture struct {
	path       string
	scriptName string
	remoteUser string
	forwarded  string
}

func newProxyFixture(t *testing.T, pool *Pool) (*echo.Echo, *upstreamCapture) {
	t.Helper()
	captured := &upstreamCapture{}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.scriptName = r.Header.Get("X-Script-Name")
		captured.remoteUser = r.Header.Get("X-Remote-User")
		captured.forwarded = r.Header.Get("X-Forwarded-For")
		w.Write([]byte("app response"))
	}))
	t.Cleanup(backend.Close)

	if pool == nil {
		pool = NewPool(types.PoolConfig{Workers: 2, Threads: 4, MaxRequests: 100}, DefaultTransportFactory(""))
	}
	h, err := NewHandler(pool, types.UpstreamConfig{URL: backend.URL, RequestTimeout: 5 * time.Second}, "/nims")
	require.NoError(t, err)

	e := echo.New()
	e.Any("/nims", h.Proxy)
	e.Any("/nims/*", h.Proxy)
	return e, captured
}

func TestProxyStripsMountPoint(t *testing.T) {
	e, captured := newProxyFixture(t, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nims/browse/exam/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app response", rec.Body.String())
	assert.Equal(t, "/browse/exam/42", captured.path)
	assert.Equal(t, "/nims", captured.scriptName)
	assert.NotEmpty(t, captured.forwarded)
}

func TestProxyMountRoot(t *testing.T) {
	e, captured := newProxyFixture(t, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nims", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", captured.path)
}

func TestProxyForwardsIdentity(t *testing.T) {
	e, captured := newProxyFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nims/auth/status", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &types.User{Login: "jdoe"}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jdoe", captured.remoteUser)
}

func TestProxyStripsSpoofedIdentity(t *testing.T) {
	e, captured := newProxyFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nims/auth/status", nil)
	req.Header.Set("X-Remote-User", "root")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, captured.remoteUser)
}

func TestProxySaturated(t *testing.T) {
	pool := NewPool(types.PoolConfig{
		Workers:        1,
		Threads:        1,
		MaxRequests:    100,
		AcquireTimeout: 50 * time.Millisecond,
	}, DefaultTransportFactory(""))

	// hold the only slot
	_, release, err := pool.Acquire(t.Context())
	require.NoError(t, err)
	defer release()

	e, _ := newProxyFixture(t, pool)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nims/browse", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProxyBadGateway(t *testing.T) {
	pool := NewPool(types.PoolConfig{Workers: 1, Threads: 1, MaxRequests: 100}, DefaultTransportFactory(""))
	h, err := NewHandler(pool, types.UpstreamConfig{URL: "http://127.0.0.1:1"}, "/nims")
	require.NoError(t, err)

	e := echo.New()
	e.Any("/nims/*", h.Proxy)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nims/browse", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

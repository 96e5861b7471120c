package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scitran/nims-gateway/pkg/auth"
	"github.com/scitran/nims-gateway/pkg/types"
)

const (
	headerRemoteUser = "X-Remote-User"
	headerScriptName = "X-Script-Name"
)

// Handler proxies application requests to the backend through the pool. The
// backend sees paths with the mount point stripped and the mount point in
// X-Script-Name, matching the script-alias contract it was written against.
type Handler struct {
	pool       *Pool
	target     *url.URL
	mountPoint string
	timeout    time.Duration
}

func NewHandler(pool *Pool, upstream types.UpstreamConfig, mountPoint string) (*Handler, error) {
	raw := upstream.URL
	if raw == "" {
		// Host is ignored when dialing a unix socket but the URL must parse
		raw = "http://localhost"
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Handler{
		pool:       pool,
		target:     target,
		mountPoint: strings.TrimSuffix(mountPoint, "/"),
		timeout:    upstream.RequestTimeout,
	}, nil
}

// Proxy is the catch-all application handler.
func (h *Handler) Proxy(c echo.Context) error {
	ctx := c.Request().Context()
	worker, release, err := h.pool.Acquire(ctx)
	if err != nil {
		var unavailable *types.ErrNoWorkerAvailable
		if errors.As(err, &unavailable) {
			log.Warn().Str("pool", h.pool.DisplayName()).Str("path", c.Path()).Msg("pool saturated")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "server busy")
		}
		return err
	}
	defer release()

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	rp := &httputil.ReverseProxy{
		Transport: worker.Transport(),
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(h.target)
			pr.SetXForwarded()

			// Never trust an inbound identity header
			pr.Out.Header.Del(headerRemoteUser)
			if user := auth.RemoteUser(pr.In.Context()); user != "" {
				pr.Out.Header.Set(headerRemoteUser, user)
			}

			pr.Out.Header.Set(headerScriptName, h.mountPoint)
			pr.Out.URL.Path = stripMount(pr.In.URL.Path, h.mountPoint)
			pr.Out.URL.RawPath = ""
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	rp.ServeHTTP(c.Response(), c.Request().WithContext(ctx))
	return nil
}

// stripMount converts a public path into the backend's root-relative path.
func stripMount(path, mount string) string {
	if mount == "" {
		return path
	}
	stripped := strings.TrimPrefix(path, mount)
	if stripped == "" {
		return "/"
	}
	return stripped
}

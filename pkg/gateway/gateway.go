package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/scitran/nims-gateway/pkg/api/v1"
	"github.com/scitran/nims-gateway/pkg/auth"
	"github.com/scitran/nims-gateway/pkg/common"
	"github.com/scitran/nims-gateway/pkg/datastore"
	"github.com/scitran/nims-gateway/pkg/proxy"
	"github.com/scitran/nims-gateway/pkg/static"
	"github.com/scitran/nims-gateway/pkg/types"
)

// Gateway is the HTTP front-end for the application: legacy-prefix redirect,
// static assets, the download farm, the SSO auth gate, and the proxied
// application itself.
type Gateway struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient
	httpServer  *http.Server
	echo        *echo.Echo
	ctx         context.Context
	cancelFunc  context.CancelFunc

	pool           *proxy.Pool
	appHandler     *proxy.Handler
	sessionManager *auth.SessionManager
	sessionStore   auth.SessionStore
	authMiddleware *auth.Middleware
	sso            *auth.SSOService
	mimeOverrides  *static.Overrides
	farm           *datastore.Handler
}

func NewGateway(config types.AppConfig) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var redisClient *common.RedisClient
	var sessionStore auth.SessionStore

	// Local mode: in-process sessions, no Redis
	if config.IsLocalMode() {
		log.Info().Msg("running in local mode - redis disabled, sessions are in-process")
		sessionStore = auth.NewMemorySessionStore()
	} else {
		var err error
		redisClient, err = common.NewRedisClient(config.Database.Redis, common.WithClientName("NIMSGateway"))
		if err != nil {
			return nil, err
		}
		sessionStore = auth.NewRedisSessionStore(redisClient)
	}

	mountPoint := config.App.MountPoint
	sessionManager := auth.NewSessionManager(config.Auth)
	authMiddleware := auth.NewMiddleware(sessionManager, sessionStore, mountPoint+"/login")
	sso := auth.NewSSOService(config.Auth.SSO, mountPoint, sessionManager, sessionStore)

	pool := proxy.NewPool(config.Pool, proxy.DefaultTransportFactory(config.App.Upstream.UnixSocket))
	appHandler, err := proxy.NewHandler(pool, config.App.Upstream, mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream handler: %w", err)
	}

	mimeOverrides := static.NewOverrides(config.MIME)

	var farm *datastore.Handler
	if config.Datastore.Enabled {
		farm, err = datastore.NewHandler(config.Datastore, mountPoint+config.Datastore.URLPrefix, mimeOverrides, authMiddleware)
		if err != nil {
			return nil, fmt.Errorf("failed to create datastore handler: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:         config,
		RedisClient:    redisClient,
		ctx:            ctx,
		cancelFunc:     cancel,
		pool:           pool,
		appHandler:     appHandler,
		sessionManager: sessionManager,
		sessionStore:   sessionStore,
		authMiddleware: authMiddleware,
		sso:            sso,
		mimeOverrides:  mimeOverrides,
		farm:           farm,
	}

	return gateway, nil
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	// Configure logging middleware
	if g.Config.Gateway.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	e.Use(middleware.Recover())

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	apiv1.NewHealthGroup(e.Group(apiv1.HttpServerBaseRoute+"/health"), g.RedisClient, g.pool)

	g.registerRoutes()
	return nil
}

func (g *Gateway) registerRoutes() {
	e := g.echo
	mount := g.Config.App.MountPoint

	// Legacy prefix: permanent redirect onto the mount point
	if legacy := g.Config.App.LegacyPrefix; legacy != "" {
		redirect := func(c echo.Context) error {
			target := mount
			if rest := c.Param("*"); rest != "" {
				target += "/" + rest
			}
			if q := c.QueryString(); q != "" {
				target += "?" + q
			}
			return c.Redirect(http.StatusMovedPermanently, target)
		}
		e.Any(legacy, redirect)
		e.Any(legacy+"/*", redirect)
	}

	// Everything under the mount point sees the resolved session user
	app := e.Group(mount, g.authMiddleware.Resolve())

	// Static assets bypass the backend entirely
	static.Register(app, g.Config.Static.Roots(), g.mimeOverrides)

	// Download farm
	if g.farm != nil {
		g.farm.Register(app, g.Config.Datastore.URLPrefix)
	}

	// SSO endpoints
	if g.sso.IsConfigured() {
		app.GET("/login", g.sso.HandleLogin)
		app.GET("/login_handler", g.sso.HandleCallback)
		log.Info().Msg("sso login registered")
	}
	app.Any("/logout_handler", g.sso.HandleLogout)

	// Authenticated application subtree
	gated := app.Group("/auth", g.authMiddleware.RequireUser())
	gated.Any("", g.appHandler.Proxy)
	gated.Any("/*", g.appHandler.Proxy)

	// Everything else under the mount point is the application
	app.Any("", g.appHandler.Proxy)
	app.Any("/*", g.appHandler.Proxy)
}

// Echo exposes the router, initializing it on first use. Tests drive requests
// through this without opening a listener.
func (g *Gateway) Echo() *echo.Echo {
	if g.echo == nil {
		g.initHTTP()
	}
	return g.echo
}

// StartAsync starts the gateway server without blocking.
func (g *Gateway) StartAsync() error {
	if err := g.initHTTP(); err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error().Err(err).Msg("failed to listen on http")
			return
		}

		if err := g.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", g.Config.Gateway.HTTP.Host).
		Int("port", g.Config.Gateway.HTTP.Port).
		Str("mount", g.Config.App.MountPoint).
		Str("pool", g.pool.DisplayName()).
		Msg("gateway http server running")

	return nil
}

func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	<-terminationSignal

	log.Info().Msg("termination signal received. shutting down...")
	g.shutdown()

	return nil
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), g.Config.Gateway.ShutdownTimeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return g.httpServer.Shutdown(ctx)
	})

	eg.Go(func() error {
		g.pool.Shutdown()
		return nil
	})

	if g.RedisClient != nil {
		eg.Go(func() error {
			return g.RedisClient.Close()
		})
	}

	g.cancelFunc()

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to shutdown gateway gracefully")
	}

	log.Info().Msg("gateway stopped")
}

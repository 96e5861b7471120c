package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/scitran/nims-gateway/pkg/types"
)

const (
	stateCookieName  = "sso_state"
	returnCookieName = "sso_return"
)

// SSOService runs the authorization-code flow against the central
// single-sign-on service and issues gateway sessions on success.
type SSOService struct {
	oauth      *oauth2.Config
	userInfo   string
	logoutURL  string
	allowed    []string
	session    *SessionManager
	store      SessionStore
	mountPoint string
}

// NewSSOService creates a new SSO service
func NewSSOService(cfg types.SSOConfig, mountPoint string, session *SessionManager, store SessionStore) *SSOService {
	return &SSOService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfo:   cfg.UserInfoURL,
		logoutURL:  cfg.LogoutURL,
		allowed:    cfg.AllowedUsers,
		session:    session,
		store:      store,
		mountPoint: mountPoint,
	}
}

// IsConfigured reports whether the SSO endpoints are set
func (s *SSOService) IsConfigured() bool {
	return s.oauth.ClientID != "" && s.oauth.Endpoint.AuthURL != ""
}

// HandleLogin initiates the SSO flow. The original URL the user asked for is
// kept in a short-lived cookie and restored after the callback.
func (s *SSOService) HandleLogin(c echo.Context) error {
	state := generateState()

	secure := c.Request().TLS != nil
	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	if target := c.QueryParam("came_from"); isSafeReturnTarget(target) {
		c.SetCookie(&http.Cookie{
			Name:     returnCookieName,
			Value:    target,
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   300,
		})
	}

	return c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

// HandleCallback completes the SSO flow and issues the session cookie
func (s *SSOService) HandleCallback(c echo.Context) error {
	// Validate state
	stateCookie, err := c.Cookie(stateCookieName)
	if err != nil || c.QueryParam("state") != stateCookie.Value {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sso state")
	}
	c.SetCookie(&http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})

	if errParam := c.QueryParam("error"); errParam != "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "sso error: "+errParam)
	}

	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("sso token exchange failed")
		return echo.NewHTTPError(http.StatusUnauthorized, "token exchange failed")
	}

	user, err := s.fetchUser(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("sso userinfo fetch failed")
		return echo.NewHTTPError(http.StatusUnauthorized, "failed to get user info")
	}

	if len(s.allowed) > 0 && !slices.Contains(s.allowed, user.Login) {
		return echo.NewHTTPError(http.StatusForbidden, "user not authorized: "+user.Login)
	}

	now := time.Now()
	session := &types.Session{
		ID:        uuid.NewString(),
		User:      *user,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.session.Duration()),
	}
	if err := s.store.Save(c.Request().Context(), session); err != nil {
		log.Error().Err(err).Msg("failed to save session")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}

	cookieToken, err := s.session.Create(session)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}
	s.session.Set(c, cookieToken)

	target := s.mountPoint
	if rc, err := c.Cookie(returnCookieName); err == nil && isSafeReturnTarget(rc.Value) {
		target = rc.Value
	}
	c.SetCookie(&http.Cookie{Name: returnCookieName, Path: "/", MaxAge: -1})

	log.Info().Str("user", user.Login).Msg("sso login")
	return c.Redirect(http.StatusFound, target)
}

// HandleLogout revokes the session and hands off to the SSO logout flow.
// This endpoint never proxies to the application backend.
func (s *SSOService) HandleLogout(c echo.Context) error {
	if claims := s.session.Get(c); claims != nil {
		if err := s.store.Delete(c.Request().Context(), claims.SessionID); err != nil {
			log.Warn().Err(err).Str("session_id", claims.SessionID).Msg("failed to revoke session")
		}
		log.Info().Str("user", claims.Login).Msg("sso logout")
	}
	s.session.Clear(c)

	if s.logoutURL != "" {
		return c.Redirect(http.StatusFound, s.logoutURL)
	}
	return c.Redirect(http.StatusFound, s.mountPoint)
}

// fetchUser gets identity from the SSO userinfo endpoint
func (s *SSOService) fetchUser(ctx context.Context, token *oauth2.Token) (*types.User, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(s.userInfo)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var info struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
		Name              string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}

	login := info.PreferredUsername
	if login == "" {
		login = info.Email
	}
	if login == "" {
		return nil, fmt.Errorf("userinfo response has no usable identity")
	}
	return &types.User{
		ID:    info.Sub,
		Login: login,
		Email: info.Email,
		Name:  info.Name,
	}, nil
}

// isSafeReturnTarget only allows same-site absolute paths, so the login flow
// cannot be used as an open redirect.
func isSafeReturnTarget(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}

func generateState() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

package types

import (
	"time"
)

// Mode constants for gateway operation
const (
	ModeLocal  = "local"  // No Redis, JWT-only sessions
	ModeRemote = "remote" // Redis-backed sessions with server-side revocation
)

// AppConfig is the root configuration for the NIMS gateway
type AppConfig struct {
	Mode       string `key:"mode" json:"mode"` // "local" or "remote"
	DebugMode  bool   `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool   `key:"prettyLogs" json:"pretty_logs"`

	Database  DatabaseConfig   `key:"database" json:"database"`
	Gateway   GatewayConfig    `key:"gateway" json:"gateway"`
	App       AppRoutingConfig `key:"app" json:"app"`
	Pool      PoolConfig       `key:"pool" json:"pool"`
	Static    StaticConfig     `key:"static" json:"static"`
	MIME      MIMEConfig       `key:"mime" json:"mime"`
	Datastore DatastoreConfig  `key:"datastore" json:"datastore"`
	Auth      AuthConfig       `key:"auth" json:"auth"`
}

// IsLocalMode returns true if running without Redis
func (c *AppConfig) IsLocalMode() bool {
	return c.Mode == ModeLocal
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis RedisConfig `key:"redis" json:"redis"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	MinIdleConns       int           `key:"minIdleConns" json:"min_idle_conns"`
	MaxIdleConns       int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxIdleTime    time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	ConnMaxLifetime    time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRedirects       int           `key:"maxRedirects" json:"max_redirects"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
	RouteByLatency     bool          `key:"routeByLatency" json:"route_by_latency"`
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP            HTTPConfig    `key:"http" json:"http"`
	ShutdownTimeout time.Duration `key:"shutdownTimeout" json:"shutdown_timeout"`
}

type HTTPConfig struct {
	Host             string `key:"host" json:"host"`
	Port             int    `key:"port" json:"port"`
	EnablePrettyLogs bool   `key:"enablePrettyLogs" json:"enable_pretty_logs"`
}

// ----------------------------------------------------------------------------
// Application Routing Configuration
// ----------------------------------------------------------------------------

// AppRoutingConfig maps the public URL space onto the application backend.
// MountPoint is the public prefix the application lives under; LegacyPrefix
// is permanently redirected onto it.
type AppRoutingConfig struct {
	MountPoint   string         `key:"mountPoint" json:"mount_point"`     // e.g. /nims
	LegacyPrefix string         `key:"legacyPrefix" json:"legacy_prefix"` // e.g. /nimsgears
	Upstream     UpstreamConfig `key:"upstream" json:"upstream"`
}

// UpstreamConfig identifies the application backend. Either URL (http host)
// or UnixSocket must be set; UnixSocket wins when both are present.
type UpstreamConfig struct {
	URL            string        `key:"url" json:"url"`
	UnixSocket     string        `key:"unixSocket" json:"unix_socket"`
	RequestTimeout time.Duration `key:"requestTimeout" json:"request_timeout"`
}

// ----------------------------------------------------------------------------
// Worker Pool Configuration
// ----------------------------------------------------------------------------

// PoolConfig sizes the upstream proxy worker pool. The defaults mirror the
// original deployment: 4 workers, 16 concurrent requests each, worker
// recycled after 1000 completed requests.
type PoolConfig struct {
	DisplayName    string        `key:"displayName" json:"display_name"`
	Workers        int           `key:"workers" json:"workers"`
	Threads        int           `key:"threads" json:"threads"`
	MaxRequests    int           `key:"maxRequests" json:"max_requests"`
	AcquireTimeout time.Duration `key:"acquireTimeout" json:"acquire_timeout"`
}

// ----------------------------------------------------------------------------
// Static Asset Configuration
// ----------------------------------------------------------------------------

// StaticConfig maps public asset prefixes (relative to App.MountPoint) to
// on-disk roots. Requests under these prefixes never reach the backend.
type StaticConfig struct {
	ImagesRoot     string `key:"imagesRoot" json:"images_root"`
	CSSRoot        string `key:"cssRoot" json:"css_root"`
	JavascriptRoot string `key:"javascriptRoot" json:"javascript_root"`
	StaticRoot     string `key:"staticRoot" json:"static_root"`
}

// Roots returns the public-prefix to disk-root mapping, skipping unset roots.
func (c StaticConfig) Roots() map[string]string {
	roots := map[string]string{}
	for prefix, root := range map[string]string{
		"/images":     c.ImagesRoot,
		"/css":        c.CSSRoot,
		"/javascript": c.JavascriptRoot,
		"/static":     c.StaticRoot,
	} {
		if root != "" {
			roots[prefix] = root
		}
	}
	return roots
}

// ----------------------------------------------------------------------------
// MIME Configuration
// ----------------------------------------------------------------------------

// MIMEConfig forces content types by file extension, overriding inference.
// Extensions include the leading dot.
type MIMEConfig struct {
	Overrides map[string]string `key:"overrides" json:"overrides"`
}

// ----------------------------------------------------------------------------
// Datastore Configuration
// ----------------------------------------------------------------------------

// DatastoreConfig configures the download farm: a runtime directory of
// symlink trees materialized by the application for bulk downloads.
type DatastoreConfig struct {
	Enabled        bool   `key:"enabled" json:"enabled"`
	Root           string `key:"root" json:"root"`                       // e.g. /dev/shm/nims
	URLPrefix      string `key:"urlPrefix" json:"url_prefix"`            // relative to App.MountPoint, e.g. /data
	AccessFileName string `key:"accessFileName" json:"access_file_name"` // per-directory override file
	RuleCacheSize  int    `key:"ruleCacheSize" json:"rule_cache_size"`
}

// ----------------------------------------------------------------------------
// Auth Configuration
// ----------------------------------------------------------------------------

// AuthConfig configures the SSO auth gate and session issuance.
type AuthConfig struct {
	SessionKey      string        `key:"sessionKey" json:"session_key"` // Secret for JWT signing
	SessionDuration time.Duration `key:"sessionDuration" json:"session_duration"`
	CookieName      string        `key:"cookieName" json:"cookie_name"`
	SSO             SSOConfig     `key:"sso" json:"sso"`
}

// SSOConfig points at the central single-sign-on service. The gateway runs an
// authorization-code flow against it and reads identity from UserInfoURL.
type SSOConfig struct {
	ClientID     string   `key:"clientId" json:"client_id"`
	ClientSecret string   `key:"clientSecret" json:"client_secret"`
	AuthURL      string   `key:"authUrl" json:"auth_url"`
	TokenURL     string   `key:"tokenUrl" json:"token_url"`
	UserInfoURL  string   `key:"userInfoUrl" json:"user_info_url"`
	LogoutURL    string   `key:"logoutUrl" json:"logout_url"`
	RedirectURL  string   `key:"redirectUrl" json:"redirect_url"`   // e.g. https://host/nims/login_handler
	Scopes       []string `key:"scopes" json:"scopes"`
	AllowedUsers []string `key:"allowedUsers" json:"allowed_users"` // Optional whitelist, empty = allow all
}

// IsConfigured reports whether the SSO endpoints are usable.
func (c SSOConfig) IsConfigured() bool {
	return c.ClientID != "" && c.AuthURL != "" && c.TokenURL != ""
}

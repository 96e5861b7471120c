package types

import "strings"

// Validate checks the parts of the config that must be coherent before the
// gateway can serve. Filesystem paths are deliberately not checked here;
// missing asset roots surface as 404s, not startup failures.
func (c *AppConfig) Validate() error {
	if c.Mode != ModeLocal && c.Mode != ModeRemote {
		return &ErrInvalidConfig{Field: "mode", Reason: "must be local or remote"}
	}
	if !strings.HasPrefix(c.App.MountPoint, "/") || c.App.MountPoint == "/" {
		return &ErrInvalidConfig{Field: "app.mountPoint", Reason: "must be a non-root absolute path"}
	}
	if c.App.LegacyPrefix != "" && !strings.HasPrefix(c.App.LegacyPrefix, "/") {
		return &ErrInvalidConfig{Field: "app.legacyPrefix", Reason: "must be an absolute path"}
	}
	if c.App.Upstream.URL == "" && c.App.Upstream.UnixSocket == "" {
		return &ErrInvalidConfig{Field: "app.upstream", Reason: "url or unixSocket required"}
	}
	if c.Pool.Workers < 1 {
		return &ErrInvalidConfig{Field: "pool.workers", Reason: "must be >= 1"}
	}
	if c.Pool.Threads < 1 {
		return &ErrInvalidConfig{Field: "pool.threads", Reason: "must be >= 1"}
	}
	if c.Pool.MaxRequests < 1 {
		return &ErrInvalidConfig{Field: "pool.maxRequests", Reason: "must be >= 1"}
	}
	if c.Datastore.Enabled {
		if c.Datastore.Root == "" {
			return &ErrInvalidConfig{Field: "datastore.root", Reason: "required when datastore is enabled"}
		}
		if !strings.HasPrefix(c.Datastore.URLPrefix, "/") {
			return &ErrInvalidConfig{Field: "datastore.urlPrefix", Reason: "must be an absolute path"}
		}
	}
	if !c.IsLocalMode() && len(c.Database.Redis.Addrs) == 0 {
		return &ErrInvalidConfig{Field: "database.redis.addrs", Reason: "required in remote mode"}
	}
	return nil
}

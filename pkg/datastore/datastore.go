// Package datastore serves the download farm: a runtime directory where the
// application materializes per-user download trees as symlinks into the
// archive. Files are streamed by the gateway, directories get an HTML index,
// and per-directory override files can tighten access.
package datastore

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scitran/nims-gateway/pkg/auth"
	"github.com/scitran/nims-gateway/pkg/static"
	"github.com/scitran/nims-gateway/pkg/types"
)

// Handler serves the symlink farm rooted at cfg.Root under urlPrefix.
type Handler struct {
	root      string
	urlPrefix string
	rules     *RuleSet
	overrides *static.Overrides
	authmw    *auth.Middleware
}

func NewHandler(cfg types.DatastoreConfig, urlPrefix string, overrides *static.Overrides, authmw *auth.Middleware) (*Handler, error) {
	rules, err := NewRuleSet(cfg.Root, cfg.AccessFileName, cfg.RuleCacheSize)
	if err != nil {
		return nil, err
	}
	return &Handler{
		root:      cfg.Root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		rules:     rules,
		overrides: overrides,
		authmw:    authmw,
	}, nil
}

// Register mounts the handler on the application route group.
func (h *Handler) Register(g *echo.Group, prefix string) {
	g.GET(prefix, h.Serve)
	g.GET(prefix+"/*", h.Serve)
	g.HEAD(prefix+"/*", h.Serve)
	log.Debug().Str("root", h.root).Str("prefix", prefix).Msg("datastore registered")
}

// Serve handles both files and directory indexes. Symlinks are followed;
// that is the whole point of the farm.
func (h *Handler) Serve(c echo.Context) error {
	rel := filepath.Clean("/" + c.Param("*"))

	policy, err := h.policyFor(rel)
	if err != nil {
		log.Error().Err(err).Str("path", rel).Msg("access rule evaluation failed")
		return echo.ErrInternalServerError
	}
	if policy.Deny {
		return echo.ErrForbidden
	}
	if policy.RequireUser && !auth.IsAuthenticated(c.Request().Context()) {
		return h.authmw.Challenge(c)
	}

	full := filepath.Join(h.root, rel)
	info, err := os.Stat(full) // follows symlinks
	if err != nil {
		return echo.ErrNotFound
	}

	if info.IsDir() {
		if !policy.Indexes {
			return echo.ErrForbidden
		}
		return h.serveIndex(c, full, rel)
	}
	return h.serveFile(c, full, info)
}

// policyFor evaluates override files for the directory containing rel. For a
// directory request the directory itself is included.
func (h *Handler) policyFor(rel string) (Policy, error) {
	dir := rel
	if info, err := os.Stat(filepath.Join(h.root, rel)); err == nil && !info.IsDir() {
		dir = path.Dir(rel)
	}
	return h.rules.PolicyFor(dir)
}

func (h *Handler) serveFile(c echo.Context, full string, info os.FileInfo) error {
	f, err := os.Open(full)
	if err != nil {
		return echo.ErrNotFound
	}
	defer f.Close()

	if contentType, ok := h.overrides.TypeByName(full); ok {
		c.Response().Header().Set(echo.HeaderContentType, contentType)
	}
	http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), f)
	return nil
}

func (h *Handler) serveIndex(c echo.Context, full, rel string) error {
	entries, err := os.ReadDir(full)
	if err != nil {
		return echo.ErrNotFound
	}

	sort.Slice(entries, func(i, j int) bool {
		di, dj := isDir(full, entries[i]), isDir(full, entries[j])
		if di != dj {
			return di
		}
		return entries[i].Name() < entries[j].Name()
	})

	var b strings.Builder
	title := html.EscapeString(path.Join("/", rel))
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head><title>Index of %s</title></head>\n<body>\n", title)
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<table>\n", title)
	b.WriteString("<tr><th align=\"left\">Name</th><th align=\"right\">Size</th><th align=\"left\">Modified</th></tr>\n")

	if rel != "/" {
		parent := h.urlPrefix + path.Dir(rel)
		if !strings.HasSuffix(parent, "/") {
			parent += "/"
		}
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">../</a></td><td></td><td></td></tr>\n",
			html.EscapeString(parent))
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == h.rules.FileName() {
			continue
		}

		href := h.urlPrefix + path.Join("/", rel, url.PathEscape(name))
		display := html.EscapeString(name)
		dir := isDir(full, entry)
		size, modified := "", ""
		if info, err := entry.Info(); err == nil {
			modified = info.ModTime().Format("2006-01-02 15:04")
			if !dir {
				size = humanize.Bytes(uint64(info.Size()))
			}
		}
		if dir {
			display += "/"
			href += "/"
		}
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td align=\"right\">%s</td><td>%s</td></tr>\n",
			href, display, size, modified)
	}

	b.WriteString("</table>\n</body>\n</html>\n")
	return c.HTML(http.StatusOK, b.String())
}

// isDir follows symlinks so linked directories index like real ones.
func isDir(parent string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}

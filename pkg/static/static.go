package static

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Handler serves one asset root. Requests here never reach the application
// backend; unknown paths 404 at the gateway.
type Handler struct {
	root      string
	overrides *Overrides
}

func NewHandler(root string, overrides *Overrides) *Handler {
	return &Handler{root: root, overrides: overrides}
}

// Register mounts asset handlers for each configured prefix on the
// application route group.
func Register(g *echo.Group, roots map[string]string, overrides *Overrides) {
	for prefix, root := range roots {
		h := NewHandler(root, overrides)
		g.GET(prefix+"/*", h.Serve)
		g.HEAD(prefix+"/*", h.Serve)
		log.Debug().Str("prefix", prefix).Str("root", root).Msg("static root registered")
	}
}

// Serve resolves the wildcard path under the root and streams the file.
func (h *Handler) Serve(c echo.Context) error {
	path, err := resolve(h.root, c.Param("*"))
	if err != nil {
		return echo.ErrNotFound
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return echo.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return echo.ErrNotFound
	}
	defer f.Close()

	if contentType, ok := h.overrides.TypeByName(path); ok {
		c.Response().Header().Set(echo.HeaderContentType, contentType)
	}
	http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), f)
	return nil
}

// resolve joins name onto root, rejecting anything that would escape it.
func resolve(root, name string) (string, error) {
	name = filepath.Clean("/" + name)
	if strings.Contains(name, "..") {
		return "", os.ErrNotExist
	}
	return filepath.Join(root, name), nil
}

package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scitran/nims-gateway/pkg/common"
	"github.com/scitran/nims-gateway/pkg/proxy"
)

type HealthGroup struct {
	redisClient *common.RedisClient
	pool        *proxy.Pool
	routerGroup *echo.Group
}

func NewHealthGroup(g *echo.Group, rdb *common.RedisClient, pool *proxy.Pool) *HealthGroup {
	group := &HealthGroup{routerGroup: g, redisClient: rdb, pool: pool}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	body := map[string]interface{}{
		"status": "ok",
	}
	if h.pool != nil {
		body["pool"] = map[string]interface{}{
			"name":    h.pool.DisplayName(),
			"workers": h.pool.Stats(),
		}
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(c.Request().Context()).Err(); err != nil {
			log.Error().Err(err).Msg("health check failed")
			body["status"] = "not ok"
			body["error"] = err.Error()
			return c.JSON(http.StatusInternalServerError, body)
		}
	}

	return c.JSON(http.StatusOK, body)
}

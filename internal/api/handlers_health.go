// handlers_health.go - Health check handlers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const upstreamPingTimeout = 2 * time.Second

// HandleHealth returns server health status. The server stays healthy when
// the Docker daemon is unreachable; the store just stops growing.
func (h *Handler) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"records": h.store.Len(),
	}

	if h.upstream != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), upstreamPingTimeout)
		defer cancel()
		if err := h.upstream.Ping(ctx); err != nil {
			resp["docker"] = "unreachable"
			resp["dockerError"] = err.Error()
		} else {
			resp["docker"] = "ok"
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the record, ingestion and health routes.
// The bare /logs path is what the bundled frontend polls.
func RegisterRoutes(e *echo.Echo, h *Handler, ws *WebSocketHandler) {
	e.GET("/logs", h.HandleLogs)

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", h.HandleHealth)

	apiGroup.GET("/logs", h.HandleListLogs)
	apiGroup.GET("/logs/msgpack", h.HandleLogsMsgpack)

	apiGroup.GET("/executions", h.HandleListExecutions)
	apiGroup.GET("/executions/:name", h.HandleGetExecution)

	apiGroup.GET("/ingest/status", h.HandleIngestStatus)
	apiGroup.POST("/ingest/trigger", h.HandleTriggerIngest)

	if ws != nil {
		apiGroup.GET("/ws/logs", ws.HandleWebSocket)
	}
}

// SetupMiddleware configures the error handler shared by all routes.
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}

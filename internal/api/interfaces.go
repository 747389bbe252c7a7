// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/steplogs/viewer/internal/models"
)

// LogsHandler serves the accumulated record set
type LogsHandler interface {
	HandleLogs(c echo.Context) error
	HandleListLogs(c echo.Context) error
	HandleLogsMsgpack(c echo.Context) error
}

// ExecutionsHandler serves records grouped per execution
type ExecutionsHandler interface {
	HandleListExecutions(c echo.Context) error
	HandleGetExecution(c echo.Context) error
}

// IngestHandler exposes ingestion state and manual triggering
type IngestHandler interface {
	HandleIngestStatus(c echo.Context) error
	HandleTriggerIngest(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// RunReporter reports on ingestion runs. *ingest.Task implements it.
type RunReporter interface {
	ContainerID() string
	Cursor() time.Time
	Current() (models.IngestRun, bool)
	History() []models.IngestRun
}

// RunTrigger starts ingestion runs on demand. *ingest.Scheduler implements it.
type RunTrigger interface {
	Trigger() bool
	Running() bool
}

// Pinger checks an upstream dependency. *docker.Source implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ LogsHandler       = (*Handler)(nil)
	_ ExecutionsHandler = (*Handler)(nil)
	_ IngestHandler     = (*Handler)(nil)
	_ HealthHandler     = (*Handler)(nil)
)

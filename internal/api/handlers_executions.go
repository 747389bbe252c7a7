package api

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/steplogs/viewer/internal/store"
)

// HandleListExecutions returns one summary per execution, most recently
// started first. Records are left out; fetch them per execution.
func (h *Handler) HandleListExecutions(c echo.Context) error {
	execs := h.store.Executions()
	for i := range execs {
		execs[i].Records = nil
	}
	return c.JSON(http.StatusOK, execs)
}

// HandleGetExecution returns one execution with its records.
// The path parameter is the execution name or its full ARN.
func (h *Handler) HandleGetExecution(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return NewValidationError("name")
	}

	ex, ok := store.FindExecution(h.store.Snapshot(), name)
	if !ok {
		return NewNotFoundError("execution", name)
	}
	return c.JSON(http.StatusOK, ex)
}

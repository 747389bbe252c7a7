package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/steplogs/viewer/internal/models"
	"github.com/steplogs/viewer/internal/store"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultPageSize = 500
	maxPageSize     = 10000
)

// Handler handles API requests.
type Handler struct {
	store    *store.LogStore
	runs     RunReporter
	trigger  RunTrigger
	upstream Pinger
	version  string
}

// NewHandler creates a new API handler. runs, trigger and upstream may be
// nil; the endpoints depending on them then report the feature as unavailable.
func NewHandler(st *store.LogStore, runs RunReporter, trigger RunTrigger, upstream Pinger, version string) *Handler {
	return &Handler{
		store:    st,
		runs:     runs,
		trigger:  trigger,
		upstream: upstream,
		version:  version,
	}
}

// HandleLogs returns every record as an ordered JSON array.
func (h *Handler) HandleLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Snapshot())
}

type logsPage struct {
	Records  []models.LogRecord `json:"records" msgpack:"records"`
	Total    int                `json:"total" msgpack:"total"`
	Page     int                `json:"page" msgpack:"page"`
	PageSize int                `json:"pageSize" msgpack:"pageSize"`
}

// HandleListLogs returns a page of records, optionally for one execution.
// Query: executionArn, page (1-based), pageSize.
func (h *Handler) HandleListLogs(c echo.Context) error {
	page, err := h.queryPage(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// HandleLogsMsgpack returns the same page as HandleListLogs in MessagePack.
func (h *Handler) HandleLogsMsgpack(c echo.Context) error {
	page, err := h.queryPage(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(page)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *Handler) queryPage(c echo.Context) (*logsPage, error) {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			return nil, NewValidationError("page")
		}
		page = p
	}
	pageSize := defaultPageSize
	if raw := c.QueryParam("pageSize"); raw != "" {
		ps, err := strconv.Atoi(raw)
		if err != nil || ps < 1 {
			return nil, NewValidationError("pageSize")
		}
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	records := h.store.Snapshot()
	if arn := c.QueryParam("executionArn"); arn != "" {
		filtered := records[:0]
		for _, r := range records {
			if r.ExecutionArn == arn {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	total := len(records)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &logsPage{
		Records:  records[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

type ingestStatus struct {
	ContainerID string             `json:"containerId"`
	Running     bool               `json:"running"`
	Cursor      *time.Time         `json:"cursor,omitempty"`
	Current     *models.IngestRun  `json:"current,omitempty"`
	History     []models.IngestRun `json:"history"`
	Records     int                `json:"records"`
}

// HandleIngestStatus reports the in-flight run, recent runs and the cursor.
func (h *Handler) HandleIngestStatus(c echo.Context) error {
	if h.runs == nil {
		return NewServiceUnavailableError("ingestion is not configured")
	}

	status := ingestStatus{
		ContainerID: h.runs.ContainerID(),
		History:     h.runs.History(),
		Records:     h.store.Len(),
	}
	if h.trigger != nil {
		status.Running = h.trigger.Running()
	}
	if cursor := h.runs.Cursor(); !cursor.IsZero() {
		status.Cursor = &cursor
	}
	if run, ok := h.runs.Current(); ok {
		status.Current = &run
	}

	return c.JSON(http.StatusOK, status)
}

// HandleTriggerIngest starts a run immediately.
func (h *Handler) HandleTriggerIngest(c echo.Context) error {
	if h.trigger == nil {
		return NewServiceUnavailableError("ingestion is not configured")
	}
	if !h.trigger.Trigger() {
		return NewConflictError("an ingestion run is already in progress")
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"status": "started",
	})
}

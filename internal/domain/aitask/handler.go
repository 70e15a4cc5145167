package aitask

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/clinical-ai/internal/platform/auth"
	"github.com/ehr/clinical-ai/pkg/pagination"
)

// PollInterval is the interval, in seconds, that clients are told to wait
// between status polls.
const PollInterval = 3

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "physician", "nurse")

	g := api.Group("/ai/tasks", role)
	g.POST("", h.SubmitTask)
	g.GET("", h.ListTasks)
	g.GET("/:id", h.GetTaskStatus)
}

// SubmitRequest is the body of POST /ai/tasks.
type SubmitRequest struct {
	Type  string          `json:"type"`
	Input json.RawMessage `json:"input"`
}

// SubmitResponse acknowledges an accepted task.
type SubmitResponse struct {
	TaskID uuid.UUID `json:"taskId"`
	Status string    `json:"status"`
}

// SubmitTask accepts a background task and returns 202 immediately. The
// Content-Location header points at the status endpoint for the new task.
func (h *Handler) SubmitTask(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	t, err := h.svc.Submit(c.Request().Context(), userID, req.Type, req.Input)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			c.Response().Header().Set("Retry-After", strconv.Itoa(PollInterval))
			return echo.NewHTTPError(http.StatusServiceUnavailable, "task queue is full, retry later")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	c.Response().Header().Set("Content-Location", "/api/v1/ai/tasks/"+t.ID.String())
	return c.JSON(http.StatusAccepted, SubmitResponse{TaskID: t.ID, Status: t.Status})
}

// GetTaskStatus returns the current task record. Non-terminal tasks carry
// X-Progress and Retry-After headers so pollers can pace themselves.
func (h *Handler) GetTaskStatus(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}

	admin := hasRole(auth.RolesFromContext(c.Request().Context()), "admin")
	t, err := h.svc.Get(c.Request().Context(), userID, admin, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if !IsTerminal(t.Status) {
		c.Response().Header().Set("X-Progress", t.Status)
		c.Response().Header().Set("Retry-After", strconv.Itoa(PollInterval))
	}
	return c.JSON(http.StatusOK, t)
}

// ListTasks returns the caller's own tasks, newest first.
func (h *Handler) ListTasks(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

package rest

import (
	"context"
	"net/http"
	"time"

	"clinicalGym/business/environment"
	"clinicalGym/business/session"
	"clinicalGym/pkg/logger"
	"clinicalGym/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type SessionService interface {
	Create(ctx context.Context, req session.CreateSessionRequest) (session.View, error)
	Get(ctx context.Context, id string) (session.View, error)
	Reset(ctx context.Context, id string, seed *int64) (session.ResetResult, error)
	Step(ctx context.Context, id string, action int) (environment.StepResult, error)
	KPIs(ctx context.Context, id string) (environment.KPIMetrics, error)
	Summary(ctx context.Context, id string) (map[string]any, error)
	Delete(ctx context.Context, id string) error
	Sweep() int
}

type SessionHandler struct {
	sessionService SessionService
	validator      *validator.Validate
	timeout        time.Duration
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: svc,
		validator:      validator.New(),
		timeout:        10 * time.Second,
	}
}

type ResetRequest struct {
	Seed *int64 `json:"seed"`
}

type StepRequest struct {
	Action *int `json:"action" validate:"required"`
}

func (h *SessionHandler) fail(c echo.Context, msg string, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error(msg, "session_id", c.Param("id"), "error", err)
	}
	return c.JSON(code, ResponseError{Message: err.Error()})
}

// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c echo.Context) error {
	var req session.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	view, err := h.sessionService.Create(ctx, req)
	if err != nil {
		return h.fail(c, "Failed to create session", err)
	}
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(view))
}

// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	view, err := h.sessionService.Get(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, "Failed to get session", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(view))
}

// POST /api/v1/sessions/:id/reset
func (h *SessionHandler) Reset(c echo.Context) error {
	var req ResetRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.sessionService.Reset(ctx, c.Param("id"), req.Seed)
	if err != nil {
		return h.fail(c, "Failed to reset session", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(res))
}

// POST /api/v1/sessions/:id/step
func (h *SessionHandler) Step(c echo.Context) error {
	var req StepRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	start := time.Now()
	defer func() { metrics.StepLatency.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.sessionService.Step(ctx, c.Param("id"), *req.Action)
	if err != nil {
		return h.fail(c, "Failed to step session", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(res))
}

// GET /api/v1/sessions/:id/kpis
func (h *SessionHandler) KPIs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	k, err := h.sessionService.KPIs(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, "Failed to read KPIs", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(k))
}

// GET /api/v1/sessions/:id/summary
func (h *SessionHandler) Summary(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	s, err := h.sessionService.Summary(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, "Failed to summarise session", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(s))
}

// DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.sessionService.Delete(ctx, c.Param("id")); err != nil {
		return h.fail(c, "Failed to delete session", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /api/v1/admin/sessions/sweep
func (h *SessionHandler) SweepSessions(c echo.Context) error {
	removed := h.sessionService.Sweep()
	logger.Info("Idle sessions swept", "removed", removed, "by", c.Get("user_id"))
	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]int{"removed": removed}))
}

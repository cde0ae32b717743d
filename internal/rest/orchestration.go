package rest

import (
	"context"
	"net/http"
	"time"

	"clinicalGym/business/orchestrator"
	"clinicalGym/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Orchestrator interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

type OrchestrationHandler struct {
	orchestrator Orchestrator
	validator    *validator.Validate
	timeout      time.Duration
}

func NewOrchestrationHandler(o Orchestrator) *OrchestrationHandler {
	return &OrchestrationHandler{
		orchestrator: o,
		validator:    validator.New(),
		timeout:      60 * time.Second,
	}
}

// POST /api/v1/orchestrations
func (h *OrchestrationHandler) Run(c echo.Context) error {
	var req orchestrator.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res, err := h.orchestrator.Run(ctx, req)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logger.Error("Failed to run orchestration", "error", err)
		}
		return c.JSON(code, ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(res))
}

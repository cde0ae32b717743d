package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"clinicalGym/business/training"
	"clinicalGym/domain"
	"clinicalGym/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type TrainingService interface {
	CreateJob(ctx context.Context, req training.CreateJobRequest, createdBy string) (*domain.TrainingJob, error)
	GetJob(ctx context.Context, id string) (*domain.TrainingJob, error)
	GetProgress(ctx context.Context, id string) (*domain.TrainingProgress, error)
	ListJobs(ctx context.Context, filter domain.TrainingJobFilter) ([]domain.TrainingJob, error)
	CancelJob(ctx context.Context, id string) (*domain.TrainingJob, error)
}

type TrainingHandler struct {
	trainingService TrainingService
	validator       *validator.Validate
	timeout         time.Duration
}

func NewTrainingHandler(svc TrainingService) *TrainingHandler {
	return &TrainingHandler{
		trainingService: svc,
		validator:       validator.New(),
		timeout:         10 * time.Second,
	}
}

type ListJobsQuery struct {
	Environment string `query:"environment"`
	Status      string `query:"status" validate:"omitempty,oneof=queued running completed failed cancelled"`
	Limit       int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

func (h *TrainingHandler) fail(c echo.Context, msg string, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error(msg, "job_id", c.Param("id"), "error", err)
	}
	return c.JSON(code, ResponseError{Message: err.Error()})
}

// POST /api/v1/training/jobs
func (h *TrainingHandler) CreateJob(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var req training.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	job, err := h.trainingService.CreateJob(ctx, req, userID)
	if err != nil {
		return h.fail(c, "Failed to create training job", err)
	}
	return c.JSON(http.StatusAccepted, fres.Response.StatusCreated(job))
}

// GET /api/v1/training/jobs
func (h *TrainingHandler) ListJobs(c echo.Context) error {
	var q ListJobsQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	jobs, err := h.trainingService.ListJobs(ctx, domain.TrainingJobFilter{
		Environment: q.Environment,
		Status:      domain.TrainingStatus(q.Status),
		Limit:       q.Limit,
	})
	if err != nil {
		return h.fail(c, "Failed to list training jobs", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(jobs))
}

// GET /api/v1/training/jobs/:id
func (h *TrainingHandler) GetJob(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	job, err := h.trainingService.GetJob(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, "Failed to get training job", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(job))
}

// GET /api/v1/training/jobs/:id/progress
func (h *TrainingHandler) GetProgress(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	p, err := h.trainingService.GetProgress(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, "Failed to get training progress", err)
	}
	c.Response().Header().Set("X-Episodes-Completed", strconv.Itoa(p.EpisodesCompleted))
	return c.JSON(http.StatusOK, fres.Response.StatusOK(p))
}

// POST /api/v1/training/jobs/:id/cancel
func (h *TrainingHandler) CancelJob(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	job, err := h.trainingService.CancelJob(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, "Failed to cancel training job", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(job))
}

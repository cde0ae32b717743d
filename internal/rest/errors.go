package rest

import (
	"context"
	"errors"
	"net/http"

	"clinicalGym/business/environment"
	"clinicalGym/business/orchestrator"
	"clinicalGym/business/policy"
	"clinicalGym/business/registry"
	"clinicalGym/business/session"
	"clinicalGym/business/training"
	"clinicalGym/domain"

	"github.com/go-playground/validator/v10"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, environment.ErrInvalidAction),
		errors.Is(err, environment.ErrNegativeWeight),
		errors.Is(err, environment.ErrUnknownRewardComponent),
		errors.Is(err, environment.ErrInvalidParam),
		errors.Is(err, policy.ErrUnknownPolicy),
		errors.Is(err, policy.ErrMissingComplete),
		errors.Is(err, training.ErrTooManyEpisode),
		errors.Is(err, orchestrator.ErrDuplicateWorkflow):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrEnvironmentNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, domain.ErrTrainingJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, environment.ErrNotReset),
		errors.Is(err, environment.ErrEpisodeTerminated),
		errors.Is(err, training.ErrJobFinished):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionLimit),
		errors.Is(err, training.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, training.ErrServiceStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

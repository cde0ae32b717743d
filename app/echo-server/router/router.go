package router

import (
	"clinicalGym/internal/middleware"
	"clinicalGym/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupEnvironmentRoutes(api *echo.Group, handler *rest.EnvironmentHandler) {
	envs := api.Group("/environments")
	envs.GET("", handler.ListEnvironments)
	envs.GET("/:name", handler.GetEnvironment)
}

func SetupSessionRoutes(api *echo.Group, handler *rest.SessionHandler) {
	sessions := api.Group("/sessions")
	sessions.POST("", handler.CreateSession)
	sessions.GET("/:id", handler.GetSession)
	sessions.POST("/:id/reset", handler.Reset)
	sessions.POST("/:id/step", handler.Step)
	sessions.GET("/:id/kpis", handler.KPIs)
	sessions.GET("/:id/summary", handler.Summary)
	sessions.DELETE("/:id", handler.DeleteSession)
}

func SetupTrainingRoutes(api *echo.Group, handler *rest.TrainingHandler) {
	jobs := api.Group("/training/jobs")
	jobs.GET("", handler.ListJobs)
	jobs.GET("/:id", handler.GetJob)
	jobs.GET("/:id/progress", handler.GetProgress)

	jobs.POST("", handler.CreateJob, middleware.AuthMiddleware())
	jobs.POST("/:id/cancel", handler.CancelJob, middleware.AuthMiddleware())
}

func SetupOrchestrationRoutes(api *echo.Group, handler *rest.OrchestrationHandler) {
	api.POST("/orchestrations", handler.Run)
}

func SetupAdminRoutes(api *echo.Group, sessions *rest.SessionHandler) {
	admin := api.Group("/admin", middleware.AuthMiddleware(), middleware.AdminOnly())
	admin.POST("/sessions/sweep", sessions.SweepSessions)
}

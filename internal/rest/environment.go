package rest

import (
	"net/http"

	"clinicalGym/business/registry"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type EnvironmentCatalog interface {
	List() []registry.Spec
	Get(name string) (registry.Spec, error)
}

type EnvironmentHandler struct {
	catalog EnvironmentCatalog
}

func NewEnvironmentHandler(catalog EnvironmentCatalog) *EnvironmentHandler {
	return &EnvironmentHandler{catalog: catalog}
}

// GET /api/v1/environments
func (h *EnvironmentHandler) ListEnvironments(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.catalog.List()))
}

// GET /api/v1/environments/:name
func (h *EnvironmentHandler) GetEnvironment(c echo.Context) error {
	spec, err := h.catalog.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(spec))
}

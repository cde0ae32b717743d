package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/items/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })
	e.GET("/crash", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/items/1", "/items/2", "/fail", "/crash"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/items/:id", "204")); got != 2 {
		t.Fatalf("items count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/fail", "418")); got != 1 {
		t.Fatalf("fail count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/crash", "500")); got != 1 {
		t.Fatalf("crash count = %v, want 1", got)
	}
}

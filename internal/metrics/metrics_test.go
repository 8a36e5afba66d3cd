package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/tasks/:id", "204")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "projectboard_http_requests_total"))
}

func TestObserveHelpers(t *testing.T) {
	m := New()
	m.ObserveSearch(true, 3)
	m.ObserveInvalidation(2, "task:42", "tasks")

	require.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("true")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Invalidations.WithLabelValues("task")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Invalidations.WithLabelValues("tasks")))
}

func TestNewIsRepeatable(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/proofstake-backend/internal/observability"
)

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/exams/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/api/exams/1", "/api/exams/2", "/wp-login.php", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	require.Contains(t, out, `ps_api_requests_total{method="GET",route="/api/exams/:id",status="200"} 2`)
	require.Contains(t, out, `ps_api_requests_total{method="GET",route="unmatched",status="404"} 1`)
	require.False(t, strings.Contains(out, `route="/metrics"`))
	require.False(t, strings.Contains(out, "wp-login"))
}

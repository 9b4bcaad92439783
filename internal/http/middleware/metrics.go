package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/proofstake-backend/internal/observability"
)

const (
	scrapeRoute    = "/metrics"
	unmatchedRoute = "unmatched"
)

// Metrics observes every request except the scrape itself, labelled by route template.
// Paths no route matched share a single label.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := routeLabel(c)
		if route == scrapeRoute {
			c.Next()
			return
		}
		m.ApiInflightInc()
		defer m.ApiInflightDec()
		began := time.Now()
		c.Next()
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(began))
	}
}

func routeLabel(c *gin.Context) string {
	if tmpl := c.FullPath(); tmpl != "" {
		return tmpl
	}
	return unmatchedRoute
}

package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/metrics"
)

// loggerMiddleware logs each request and records request metrics
func loggerMiddleware(log *logrus.Entry, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, status, duration)

		entry := log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Warn("HTTP request")
		case route == "/health" || route == "/metrics":
			entry.Trace("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// recoveryMiddleware turns a handler panic into a 500 response
func recoveryMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"panic_info":  r,
					"path":        c.Request.URL.Path,
					"method":      c.Request.Method,
					"stack_trace": string(debug.Stack()),
				}).Error("Recovered panic in HTTP handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

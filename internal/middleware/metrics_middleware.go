package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type MetricsRecorder interface {
	RecordRequest(action, status string)
	RecordRequestDuration(action, status string, duration time.Duration)
}

// Metrics records per-action request counts and latency. The action label
// is the final path segment so route templates and raw paths agree.
func Metrics(recorder MetricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		action := actionLabel(c)
		status := statusLabel(c.Writer.Status())
		recorder.RecordRequest(action, status)
		recorder.RecordRequestDuration(action, status, time.Since(start))
	}
}

func actionLabel(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		path = "unknown"
	}
	return path
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "unknown"
	}
}

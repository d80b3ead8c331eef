package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-ID"
	sentryFlushTimeout = 2 * time.Second
)

// RequestTracking adds a request ID and completion logging to all requests.
// cloudwatch may be nil.
func RequestTracking(sentryMetrics *metrics.SentryMetrics, cloudwatch *metrics.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.Scope().SetTag("request_id", requestID)
		}

		start := time.Now()
		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := logger.Fields{
			"request_id":  requestID,
			"duration_ms": duration.Milliseconds(),
			"status_code": statusCode,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"client_ip":   c.ClientIP(),
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			logger.Error("Request failed with server error", fmt.Errorf("status %d", statusCode), fields)
		case statusCode >= http.StatusBadRequest:
			logger.Warn("Request failed with client error", fields)
		default:
			logger.Info("Request completed", fields)
		}

		sentryMetrics.RecordAPIRequest(c.Request.Context(), route, statusCode, duration)
		if cloudwatch != nil {
			cloudwatch.RecordAPIRequest(route, statusCode, duration)
		}
	}
}

// SentryMiddleware returns the Sentry middleware with custom configuration
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         sentryFlushTimeout,
	})
}

// RecoverWithSentry recovers from panics and sends them to Sentry
func RecoverWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				if hub := sentrygin.GetHubFromContext(c); hub != nil {
					hub.WithScope(func(scope *sentry.Scope) {
						scope.SetRequest(c.Request)
						scope.SetContext("request", map[string]interface{}{
							"request_id": c.GetString("request_id"),
							"method":     c.Request.Method,
							"path":       c.Request.URL.Path,
							"client_ip":  c.ClientIP(),
						})
						if sessionID := c.Param("id"); sessionID != "" {
							scope.SetTag("session_id", sessionID)
						}
						hub.RecoverWithContext(c.Request.Context(), err)
					})
				}

				logger.Error("Panic recovered", fmt.Errorf("%v", err), logger.Fields{
					"request_id": c.GetString("request_id"),
					"path":       c.Request.URL.Path,
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": c.GetString("request_id"),
				})
			}
		}()
		c.Next()
	}
}

package logger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// Fields represents structured log fields
type Fields map[string]interface{}

var debugEnabled atomic.Bool

// SetDebug toggles Debug output
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// WithContext extracts request context for logging
func WithContext(c *gin.Context) Fields {
	fields := Fields{
		"request_id": c.GetString("request_id"),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}

	if sessionID := c.Param("id"); sessionID != "" {
		fields["session_id"] = sessionID
	}

	return fields
}

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	log.Printf("[INFO] %s %s", msg, formatFields(fields))
	breadcrumb("info", msg, fields, sentry.LevelInfo)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields Fields) {
	log.Printf("[WARN] %s %s", msg, formatFields(fields))
	breadcrumb("warning", msg, fields, sentry.LevelWarning)
}

// Debug logs a debug message with structured fields
func Debug(msg string, fields Fields) {
	if !debugEnabled.Load() {
		return
	}
	log.Printf("[DEBUG] %s %s", msg, formatFields(fields))
	breadcrumb("debug", msg, fields, sentry.LevelDebug)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	log.Printf("[ERROR] %s: %v %s", msg, err, formatFields(fields))

	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range fields {
			scope.SetContext(key, map[string]interface{}{
				"value": value,
			})
		}

		// Tags for filtering in Sentry
		for _, tag := range []string{"request_id", "session_id", "stage", "model"} {
			if value, ok := fields[tag].(string); ok && value != "" {
				scope.SetTag(tag, value)
			}
		}

		hub.CaptureException(err)
	})
}

// LogAPIRequest logs API request metrics
func LogAPIRequest(c *gin.Context, duration time.Duration, statusCode int, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}

	fields["duration_ms"] = duration.Milliseconds()
	fields["status_code"] = statusCode
	fields["request_id"] = c.GetString("request_id")
	fields["method"] = c.Request.Method
	fields["path"] = c.Request.URL.Path
	fields["client_ip"] = c.ClientIP()

	Info("API request completed", fields)
}

// LogStageResult logs the outcome of one pipeline stage model call
func LogStageResult(ctx context.Context, stage, model string, duration time.Duration, tokens map[string]int64, err error) {
	fields := Fields{
		"stage":       stage,
		"model":       model,
		"duration_ms": duration.Milliseconds(),
	}
	for k, v := range tokens {
		fields[k] = v
	}

	if err != nil {
		Error("Stage failed", err, fields)
		return
	}
	Info("Stage completed", fields)

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		span := sentry.StartSpan(ctx, "pipeline.stage")
		span.Description = stage
		span.SetData("model", model)
		span.SetData("tokens", tokens)
		span.Finish()
	}
}

func breadcrumb(kind, msg string, fields Fields, level sentry.Level) {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     convertFieldsToMap(fields),
			Level:    level,
		})
	}
}

// formatFields renders fields as {k=v, ...} with keys sorted
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(fields[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func convertFieldsToMap(fields Fields) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		result[k] = v
	}
	return result
}

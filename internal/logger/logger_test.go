package logger

import (
	"bytes"
	"errors"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)
	fn()
	return buf.String()
}

func TestFormatFields(t *testing.T) {
	assert.Equal(t, "", formatFields(nil))
	assert.Equal(t, "{a=1, b=x, c=0.50}", formatFields(Fields{"c": 0.5, "b": "x", "a": 1}))
}

func TestInfoAndWarn(t *testing.T) {
	out := captureLog(t, func() {
		Info("Stage completed", Fields{"stage": "analysis"})
		Warn("Slow stage", Fields{"duration_ms": int64(1200)})
	})

	assert.Contains(t, out, "[INFO] Stage completed {stage=analysis}")
	assert.Contains(t, out, "[WARN] Slow stage {duration_ms=1200}")
}

func TestDebugGated(t *testing.T) {
	SetDebug(false)
	out := captureLog(t, func() { Debug("hidden", nil) })
	assert.Empty(t, out)

	SetDebug(true)
	defer SetDebug(false)
	out = captureLog(t, func() { Debug("shown", nil) })
	assert.Contains(t, out, "[DEBUG] shown")
}

func TestError(t *testing.T) {
	out := captureLog(t, func() {
		Error("Stage failed", errors.New("boom"), Fields{"stage": "composition"})
	})
	assert.Contains(t, out, "[ERROR] Stage failed: boom {stage=composition}")
}

func TestWithContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/sessions/abc/play", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	c.Set("request_id", "req-1")

	fields := WithContext(c)
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "abc", fields["session_id"])
}

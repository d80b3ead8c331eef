package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	eventDone    = "done"
	eventSession = "session"
	eventNote    = "note"
)

// setSSEHeaders prepares the response for server-sent events
func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// writeSSE writes one data event and flushes it to the client
func writeSSE(c *gin.Context, event any) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", eventJSON); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const streamHeartbeat = 25 * time.Second

// openStream sends the SSE headers and the first event right away so the
// client sees the connection as established.
func openStream(c *gin.Context, event string, snapshot interface{}) {
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(event, snapshot)
	c.Writer.Flush()
}

// pump writes one event per update, plus a heartbeat, until the client
// leaves or updates is closed.
func pump[T any](c *gin.Context, event string, updates <-chan T) {
	ctx := c.Request.Context()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent(event, v)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

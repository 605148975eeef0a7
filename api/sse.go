package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// streamEvents pushes lifecycle events to the client as server-sent events.
// The subscription is best-effort: a client that stops reading loses events
// rather than backpressuring the correlator.
func (h *Handler) streamEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sub := h.Notifier.Subscribe()
	defer h.Notifier.Unsubscribe(sub)

	c.SSEvent("message", gin.H{
		"type":      "connected",
		"message":   "Event stream connected",
		"timestamp": time.Now().UTC(),
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("message", event)
			return true
		}
	})
}

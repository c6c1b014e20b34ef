package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
)

const DefaultKeepalive = 25 * time.Second

// Handler streams feed events to the caller as server-sent events. The
// caller's role decides which rows arrive; see policy.Visible.
type Handler struct {
	broker    *Broker
	keepalive time.Duration
}

func NewHandler(broker *Broker, keepalive time.Duration) *Handler {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	return &Handler{broker: broker, keepalive: keepalive}
}

// Stream serves GET /api/realtime?tables=products,prices,orders.
func (h *Handler) Stream(c *gin.Context) {
	tables, err := ParseTables(c.Query("tables"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.broker.Subscribe(auth.PrincipalFrom(c), tables...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(string(ev.Table), ev)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

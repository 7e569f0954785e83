package handler

import (
	"net/http"
	"strings"
	"time"

	"core-ledger/internal/core/domain"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

const defaultKeepAlive = 15 * time.Second

// EventSource hands out subscriptions to committed ledger events.
type EventSource interface {
	Subscribe() (<-chan domain.Event, func())
}

// EventHandler streams committed changes as server-sent events.
type EventHandler struct {
	source    EventSource
	keepAlive time.Duration
}

// NewEventHandler creates a new EventHandler. A non-positive keepAlive uses
// the default interval.
func NewEventHandler(source EventSource, keepAlive time.Duration) *EventHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &EventHandler{source: source, keepAlive: keepAlive}
}

// Stream handles GET /api/v1/events?types=account.created,transaction.created.
// Each event is sent with its id, its type as the SSE event name and the
// JSON event as data. Comment lines keep idle connections open.
func (h *EventHandler) Stream(c *gin.Context) {
	wanted := parseEventTypes(c.Query("types"))

	events, cancel := h.source.Subscribe()
	defer cancel()

	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if len(wanted) > 0 && !wanted[ev.Type] {
				continue
			}
			c.Render(-1, sse.Event{Id: ev.ID.String(), Event: string(ev.Type), Data: ev})
			c.Writer.Flush()
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func parseEventTypes(raw string) map[domain.EventType]bool {
	if raw == "" {
		return nil
	}
	wanted := make(map[domain.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[domain.EventType(t)] = true
		}
	}
	return wanted
}

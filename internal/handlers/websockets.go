package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"library_api/internal/models"
	"library_api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Origins are checked by the CORS layer for browser callers; the socket itself needs a bearer token.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// activityCursor remembers how far the stream has progressed.
type activityCursor struct {
	since time.Time
	seen  map[string]struct{}
}

// @Summary      Stream activity
// @Description  Upgrades to a WebSocket and pushes {"type":"activity","data":[...]} with entries newer than the last push.
// @Tags         activity
// @Param        interval     query  string  false  "poll interval, e.g. 2s (max 10s)"
// @Param        interval_ms  query  int     false  "poll interval in ms (max 10000)"
// @Router       /activity/ws [get]
// @Security     BearerAuth
func (h *Handler) wsActivity(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	cur := &activityCursor{since: time.Now().UTC().Add(-time.Hour), seen: map[string]struct{}{}}
	if err := h.sendActivity(c.Request.Context(), conn, cur); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.sendActivity(c.Request.Context(), conn, cur); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// Helper: parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendActivity pushes entries at or after the cursor that were not sent yet.
// Nothing is written when there is nothing new.
func (h *Handler) sendActivity(ctx context.Context, conn *websocket.Conn, cur *activityCursor) error {
	events, err := h.services.ActivityLog.List(ctx, service.LogFilter{From: cur.since})
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_list_activity_failed", "err", err)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(wsEnvelope{Type: "error", Error: "failed to load activity"})
	}

	fresh := make([]models.Activity, 0, len(events))
	for _, e := range events {
		if e.OccurredAt.Before(cur.since) {
			continue
		}
		if _, dup := cur.seen[e.ID]; dup {
			continue
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return nil
	}

	// entries sharing the newest timestamp are re-listed next time, so keep only their ids
	last := fresh[len(fresh)-1].OccurredAt
	if last.After(cur.since) {
		cur.since = last
		cur.seen = map[string]struct{}{}
	}
	for _, e := range events {
		if e.OccurredAt.Equal(cur.since) {
			cur.seen[e.ID] = struct{}{}
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "activity", Data: fresh})
}

// stream.go pushes live sync progress over a websocket.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
}

// originAllowed applies the CORS origin list to websocket handshakes.
// Requests without an Origin header are not from a browser and pass.
func (h *Handler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// SyncStream upgrades to a websocket and sends a progress snapshot every
// StreamInterval. The stream ends with a final snapshot once the sync is
// no longer running, or when the client goes away.
// GET /api/sync/stream
func (h *Handler) SyncStream(c *gin.Context) {
	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		log.Printf("⚠️  Progress stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Go Pattern: a reader goroutine is required to process control frames
	// (close). It signals the writer loop when the client leaves. Dead peers
	// are caught by the write deadline.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("⚠️  Progress stream read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(h.opts.StreamInterval)
	defer ticker.Stop()

	for {
		status := h.Sync.Status()
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(status); err != nil {
			return
		}
		if !status.Running {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "sync finished"),
				time.Now().Add(streamWriteWait))
			return
		}

		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

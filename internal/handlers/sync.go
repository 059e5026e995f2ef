// sync.go handles the endpoints that start, watch and stop mirror syncs.
package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/middleware"
	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/ingest"
)

// TriggerSync starts a background sync.
// POST /api/sync
//
// Request body (all fields optional):
//
//	{"apiKey": "...", "fullSync": false, "channels": [{"id": "UC...", "name": "..."}]}
//
// Without channels the whole roster is synced. The upstream key comes from
// the body or the X-APIKEY header; without either the server's own key is used.
// Returns 202 with the run id, or 409 if a sync is already running.
func (h *Handler) TriggerSync(c *gin.Context) {
	var req models.TriggerSyncRequest
	// An empty body means "incremental sync of the roster"
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "Request body must be JSON: {apiKey, fullSync, channels}")
		return
	}
	for _, ch := range req.Channels {
		if strings.TrimSpace(ch.ID) == "" {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "Every channel needs an id")
			return
		}
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.GetHeader(middleware.HeaderAPIKey)
	}

	run, err := h.Sync.Start(ingest.StartRequest{
		APIKey:   apiKey,
		FullSync: req.FullSync,
		Channels: req.Channels,
	})
	switch {
	case errors.Is(err, ingest.ErrSyncInProgress):
		errorJSON(c, http.StatusConflict, "sync_in_progress", "Sync already in progress")
		return
	case errors.Is(err, ingest.ErrNoChannels):
		errorJSON(c, http.StatusBadRequest, "no_channels", "No channels to sync")
		return
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, "sync_error", "Failed to start sync")
		return
	}

	method := middleware.GetAuthMethod(c)
	log.Printf("🔄 Sync %s started by %s (%s, full=%t)", run.ID, c.ClientIP(), authLabel(method), req.FullSync)

	resp := gin.H{
		"message": "Sync started in background",
		"runId":   run.ID,
	}
	if method != "" {
		resp["authorizedBy"] = method
	}
	c.JSON(http.StatusAccepted, resp)
}

// SyncStatus returns a snapshot of the current or last sync.
// GET /api/sync/status
func (h *Handler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sync.Status())
}

// CancelSync asks the running sync to stop at its next page boundary.
// POST /api/sync/cancel
func (h *Handler) CancelSync(c *gin.Context) {
	if err := h.Sync.Cancel(); err != nil {
		if errors.Is(err, ingest.ErrNotRunning) {
			errorJSON(c, http.StatusBadRequest, "not_running", "No sync in progress")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "sync_error", "Failed to cancel sync")
		return
	}
	log.Printf("⏹️  Sync cancel requested by %s (%s)", c.ClientIP(), authLabel(middleware.GetAuthMethod(c)))
	c.JSON(http.StatusOK, gin.H{"message": "Sync cancel requested"})
}

// authLabel names the credential for log lines.
func authLabel(method string) string {
	if method == "" {
		return "unauthenticated route"
	}
	return method
}

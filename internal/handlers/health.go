// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// Go handlers are plain functions with no class inheritance. We group
// related handlers into a struct (Handler) that holds shared dependencies.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/channels"
	"github.com/Shimizu-Technology/holo-search-api/internal/middleware"
	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/holodex"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/ingest"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/worker"
	"github.com/Shimizu-Technology/holo-search-api/internal/stats"
	"github.com/Shimizu-Technology/holo-search-api/internal/store"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Options carries the handler settings that come from configuration.
type Options struct {
	StoreName          string
	SearchDefaultLimit int
	SearchMaxLimit     int
	// ExportMaxRows caps a single export download.
	ExportMaxRows  int
	Stats          stats.Options
	Roster         []channels.Channel
	Admin          middleware.AdminCredentials
	JWTTTL         time.Duration
	AllowedOrigins []string
	// StreamInterval is how often the progress stream pushes a snapshot.
	StreamInterval time.Duration
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
// Tests build a Handler over the in-memory store.
type Handler struct {
	Store  store.Store
	Stats  *stats.Aggregator
	Sync   *ingest.Orchestrator
	Worker *worker.Pool
	// Proxy relays /api/v2 and avatar requests upstream; nil disables them.
	Proxy *holodex.Proxy

	opts Options
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(s store.Store, wp *worker.Pool, orch *ingest.Orchestrator, opts Options) *Handler {
	if opts.SearchDefaultLimit <= 0 {
		opts.SearchDefaultLimit = 32
	}
	if opts.SearchMaxLimit <= 0 {
		opts.SearchMaxLimit = 100
	}
	if opts.ExportMaxRows <= 0 {
		opts.ExportMaxRows = opts.SearchMaxLimit * 10
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	if opts.JWTTTL <= 0 {
		opts.JWTTTL = 12 * time.Hour
	}
	if opts.Roster == nil {
		opts.Roster = channels.Default
	}
	return &Handler{
		Store:  s,
		Stats:  stats.New(s, opts.Stats),
		Sync:   orch,
		Worker: wp,
		opts:   opts,
	}
}

// HealthCheck returns the API health status.
// GET /api/health
func (h *Handler) HealthCheck(c *gin.Context) {
	storeStatus := "healthy"
	if err := h.Store.HealthCheck(c.Request.Context()); err != nil {
		log.Printf("⚠️  Store health check failed: %v", err)
		storeStatus = "unhealthy"
	}

	workers, queued := 0, 0
	if h.Worker != nil {
		workers = h.Worker.WorkerCount()
		queued = h.Worker.QueueSize()
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Version: Version,
		Store:   h.opts.StoreName + ": " + storeStatus,
		Workers: workers,
		Queued:  queued,
		Syncing: h.Sync.Progress().Running(),
	})
}

// ListChannels returns the configured channel roster.
// GET /api/channels
func (h *Handler) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, models.ItemsResponse[channels.Channel]{Items: h.opts.Roster})
}

// errorJSON writes the standard error body.
func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

// Package router sets up all HTTP routes for the API.
package router

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/handlers"
	"github.com/Shimizu-Technology/holo-search-api/internal/middleware"
)

// Limits are per-minute request budgets per client IP for each route group.
type Limits struct {
	API    int
	Search int
	Sync   int
	Proxy  int
}

// Config carries what the route table needs beyond the handlers.
type Config struct {
	Admin          middleware.AdminCredentials
	Limits         Limits
	AllowedOrigins []string
}

// Setup creates and configures the Gin router with all routes.
func Setup(h *handlers.Handler, rl *middleware.RateLimiter, cfg Config) *gin.Engine {
	r := gin.Default()
	// Client IPs come from the socket only; forwarded headers could fake
	// loopback callers or dodge rate limits.
	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("⚠️  Failed to reset trusted proxies: %v", err)
	}
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api := r.Group("/api")

	// --- Public Routes ---
	public := api.Group("")
	public.Use(rl.Limit("api", cfg.Limits.API))
	{
		public.GET("/health", h.HealthCheck)
		public.GET("/channels", h.ListChannels)
		public.GET("/sync/status", h.SyncStatus)
		public.GET("/sync/stream", h.SyncStream)
		public.GET("/statics/channelImg/:channel_id", h.ChannelImage)

		// API Documentation
		public.GET("/docs", h.ServeSwaggerUI)
		public.GET("/docs/openapi.yaml", h.ServeOpenAPISpec)
	}

	// --- Search ---
	search := api.Group("/search")
	search.Use(rl.Limit("search", cfg.Limits.Search))
	{
		search.GET("", h.Search)
		search.GET("/export", h.ExportSearch)
	}

	// --- Upstream Proxy ---
	proxy := api.Group("/v2")
	proxy.Use(rl.Limit("proxy", cfg.Limits.Proxy))
	{
		proxy.GET("/*path", h.ProxyUpstream)
		proxy.POST("/*path", h.ProxyUpstream)
	}

	// --- Statistics ---
	stats := api.Group("/stats")
	stats.Use(rl.Limit("api", cfg.Limits.API))
	{
		stats.GET("/yearly", h.YearlyStats)
		stats.GET("/monthly", h.MonthlyStats)
		stats.GET("/yearly-membership", h.YearlyMembershipStats)
		stats.GET("/membership", h.MembershipStats)
		stats.GET("/collab", h.CollabStats)
		stats.GET("/yearly-collab", h.YearlyCollabStats)
		stats.GET("/topic", h.TopicStats)
		stats.GET("/yearly-topic", h.YearlyTopicStats)
	}

	// --- Admin Routes ---
	// The token exchange shares the sync budget so key guessing stays slow.
	api.POST("/auth/token", rl.Limit("sync", cfg.Limits.Sync), h.IssueToken)

	admin := api.Group("/sync")
	admin.Use(rl.Limit("sync", cfg.Limits.Sync))
	admin.Use(middleware.AdminAuth(cfg.Admin))
	{
		admin.POST("", h.TriggerSync)
		admin.POST("/cancel", h.CancelSync)
	}

	return r
}

// Package main is the entry point for the Holo Search API server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/channels"
	"github.com/Shimizu-Technology/holo-search-api/internal/config"
	"github.com/Shimizu-Technology/holo-search-api/internal/database"
	"github.com/Shimizu-Technology/holo-search-api/internal/handlers"
	"github.com/Shimizu-Technology/holo-search-api/internal/memstore"
	"github.com/Shimizu-Technology/holo-search-api/internal/middleware"
	"github.com/Shimizu-Technology/holo-search-api/internal/router"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/holodex"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/ingest"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/webhook"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/worker"
	"github.com/Shimizu-Technology/holo-search-api/internal/stats"
	"github.com/Shimizu-Technology/holo-search-api/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 Holo Search API %s starting...", Version)

	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	log.Printf("📋 Config loaded: port=%s, store=%s, store_workers=%d, gin_mode=%s",
		cfg.Port, cfg.Store, cfg.StoreWorkers, cfg.GinMode)

	os.Setenv("GIN_MODE", cfg.GinMode)

	roster, err := channels.Load(cfg.ChannelsFile)
	if err != nil {
		log.Fatalf("❌ Failed to load channel roster: %v", err)
	}
	log.Printf("📺 Channel roster: %d channels", len(roster))

	// Step 2: Open the Record Store
	// Exports read up to ten search pages at once, so the store allows that much.
	exportMaxRows := cfg.SearchMaxLimit * 10
	backend, closeStore, err := openStore(cfg, exportMaxRows)
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}
	defer closeStore()

	// Step 3: Create and Start the Store Worker Pool
	wp := worker.NewPool(cfg.StoreWorkers, cfg.StoreQueueSize)
	wp.Start()
	defer wp.Stop()
	pooled := worker.NewPooledStore(wp, backend)

	// Step 4: Create Sync Services
	client := holodex.New(cfg.HolodexBaseURL, cfg.HolodexAPIKey,
		holodex.WithRateLimit(cfg.UpstreamRPS),
		holodex.WithStaticsURL(cfg.HolodexStaticsURL),
	)
	if cfg.HolodexAPIKey == "" {
		log.Println("⚠️  No HOLODEX_API_KEY set (syncs must bring their own key)")
	}

	paginator := ingest.NewPaginator(client, pooled, ingest.PaginatorConfig{
		PageSize:    cfg.SyncPageSize,
		MaxRetries:  cfg.SyncMaxRetries,
		BackoffBase: cfg.SyncBackoffBase,
		BackoffMax:  cfg.SyncBackoffMax,
		PageDelay:   cfg.SyncPageDelay,
	})

	// Runs outlive their HTTP requests; this context ends them on shutdown.
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()

	orchOpts := []ingest.Option{ingest.WithMaxConcurrency(cfg.SyncMaxConcurrency)}
	webhookService := webhook.New(cfg.WebhookURLs, cfg.WebhookSecret)
	if webhookService.Enabled() {
		orchOpts = append(orchOpts, ingest.WithNotifier(webhookService))
		log.Printf("✅ Sync webhooks enabled (%d endpoints)", len(cfg.WebhookURLs))
	}
	orch := ingest.NewOrchestrator(syncCtx, paginator, ingest.NewProgress(), channels.Refs(roster), orchOpts...)

	if cfg.SyncInterval > 0 || cfg.SyncOnStart {
		go ingest.NewScheduler(orch, cfg.SyncInterval, cfg.HolodexAPIKey, cfg.SyncOnStart).Run(syncCtx)
	}

	// Log admin auth status
	admin := middleware.AdminCredentials{
		Token:         cfg.AdminToken,
		TokenBcrypt:   cfg.AdminTokenBcrypt,
		JWTSecret:     cfg.JWTSecret,
		AllowLoopback: !cfg.IsRelease(),
	}
	if cfg.AdminToken == "" && cfg.AdminTokenBcrypt == "" {
		log.Println("⚠️  No admin token set (sync routes only accept X-APIKEY or local callers)")
	}

	// Step 5: Setup HTTP Router
	h := handlers.NewHandler(pooled, wp, orch, handlers.Options{
		StoreName:          cfg.Store,
		SearchDefaultLimit: cfg.SearchDefaultLimit,
		SearchMaxLimit:     cfg.SearchMaxLimit,
		ExportMaxRows:      exportMaxRows,
		Stats: stats.Options{
			MembershipKeywords: cfg.MembershipKeywords,
			TopicExclude:       cfg.TopicExclude,
		},
		Roster:         roster,
		Admin:          admin,
		JWTTTL:         cfg.JWTTTL,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if cfg.ProxyEnabled {
		h.Proxy = holodex.NewProxy(client, cfg.ProxyCacheSize, cfg.ProxyCacheTTL)
		log.Printf("🔁 Upstream proxy enabled (cache %d entries, ttl %s)", cfg.ProxyCacheSize, cfg.ProxyCacheTTL)
	}

	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	r := router.Setup(h, rateLimiter, router.Config{
		Admin: admin,
		Limits: router.Limits{
			API:    cfg.RateLimitAPI,
			Search: cfg.RateLimitSearch,
			Sync:   cfg.RateLimitSync,
			Proxy:  cfg.RateLimitProxy,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Step 6: Start the HTTP Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://localhost:%s", cfg.Port)
		log.Printf("📖 Health check: http://localhost:%s/api/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Step 7: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("🛑 Received signal %v, shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Stop in-flight syncs at their next page boundary and wait for them,
	// so progress is finalized before the store goes away.
	stopSync()
	orch.Wait()
	log.Println("⏹️  Sync workers stopped")

	// Signal webhook service to stop pending deliveries
	webhookService.Shutdown()
	log.Println("⏳ Webhook deliveries stopped")

	log.Println("👋 Server stopped. Goodbye!")
}

// openStore connects the configured Record Store backend. The returned
// func releases it.
func openStore(cfg *config.Config, maxLimit int) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Println("⚠️  Using in-memory store (data is lost on restart)")
		return memstore.New(maxLimit), func() {}, nil
	default:
		db, err := database.New(cfg.DatabaseURL, maxLimit)
		if err != nil {
			return nil, nil, err
		}
		log.Println("✅ Database connected")

		if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		return db, func() { db.Close() }, nil
	}
}

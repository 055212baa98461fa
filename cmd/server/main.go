package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cartly/backend/config"
	httpDelivery "github.com/cartly/backend/internal/delivery/http"
	"github.com/cartly/backend/internal/domain"
	"github.com/cartly/backend/internal/infrastructure/cache"
	"github.com/cartly/backend/internal/infrastructure/extraction"
	"github.com/cartly/backend/internal/infrastructure/postgres"
	"github.com/cartly/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Cartly Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s", cfg.Cache.Type)

	ctx := context.Background()

	// Initialize infrastructure dependencies
	var scanCache domain.CacheRepository
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		scanCache = redisCache
	default:
		scanCache = cache.NewMemoryCache()
	}
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()
	cartRepo := postgres.NewCartRepository(pool)

	extractionClient := extraction.NewClient(cfg.Extraction.APIKey, cfg.Extraction.BaseURL, cfg.Extraction.Model)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		extractionClient.SetDebug(true)
		log.Printf("Extraction client debug mode enabled")
	}

	if cfg.Extraction.APIKey != "" {
		log.Printf("Extraction API configured: %s (model: %s)", cfg.Extraction.BaseURL, cfg.Extraction.Model)
	} else {
		log.Printf("WARNING: Extraction API configured: %s (key: NOT CONFIGURED - API calls will fail!)", cfg.Extraction.BaseURL)
	}

	// Initialize usecase layer
	scanService := usecase.NewScanService(
		scanCache,
		cartRepo,
		extractionClient,
		usecase.ScanServiceConfig{
			CacheTTL:            cfg.Cache.TTL,
			SimilarityThreshold: cfg.Matching.SimilarityThreshold,
			EnableDebugLogging:  cfg.Matching.EnableDebugLogging,
		},
	)

	log.Printf("Matching: threshold=%.2f, debug=%v",
		cfg.Matching.SimilarityThreshold,
		cfg.Matching.EnableDebugLogging)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(scanService, cartRepo)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"booba-marketplace-api/internal/cache"
	"booba-marketplace-api/internal/config"
	"booba-marketplace-api/internal/handler"
	"booba-marketplace-api/internal/repository"
	"booba-marketplace-api/internal/router"
	"booba-marketplace-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Booba Marketplace API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize marketplace repository based on config
	var repo repository.MarketplaceRepository
	switch cfg.Store.Type {
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresMarketplaceRepository(cfg.Store.PostgresDSN(), cfg.Economy.StartingBubix)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		repo = pgRepo
		log.Println("PostgreSQL marketplace repository initialized")
	case "mysql":
		myRepo, err := repository.NewMySQLMarketplaceRepository(cfg.Store.MySQLDSN(), cfg.Economy.StartingBubix)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		repo = myRepo
		log.Println("MySQL marketplace repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteMarketplaceRepository(cfg.Store.Path, cfg.Economy.StartingBubix)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		repo = sqliteRepo
		log.Println("SQLite marketplace repository initialized")
	}
	defer repo.Close()

	// Initialize listings cache based on config
	var listingsCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, listings cache disabled: %v", err)
		} else {
			listingsCache = redisCache
			log.Println("Redis listings cache initialized")
		}
	case "none":
		log.Println("Listings cache disabled")
	default: // memory
		listingsCache = cache.NewMemoryCache()
		log.Println("Memory listings cache initialized")
	}
	if listingsCache != nil {
		defer listingsCache.Close()
	}

	// Initialize services
	marketplaceService := service.NewMarketplaceService(repo, listingsCache, service.Options{
		ListingsTTL:   cfg.Cache.ListingsTTL,
		StartingBubix: cfg.Economy.StartingBubix,
	})

	// Initialize handlers
	healthHandler := handler.New(repo, cfg.Store.Type, cfg.App.Version)
	marketplaceHandler := handler.NewMarketplaceHandler(marketplaceService)

	// Create router
	r := router.New(router.Config{
		Handler:            healthHandler,
		MarketplaceHandler: marketplaceHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

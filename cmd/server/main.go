// Package main is the entry point for the SlicePaint mask backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slicepaint/slicepaint/internal/api"
	"github.com/slicepaint/slicepaint/internal/cache"
	"github.com/slicepaint/slicepaint/internal/config"
	"github.com/slicepaint/slicepaint/internal/maskstore"
	"github.com/slicepaint/slicepaint/internal/render"
	"github.com/slicepaint/slicepaint/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting SlicePaint server on port %d", cfg.Server.Port)

	// Initialize stroke journal and blob store
	store, err := maskstore.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize mask store: %v", err)
	}
	defer store.Close()
	log.Printf("Mask store: %s", cfg.Storage.DatabasePath)

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		SnapshotSizeMB: cfg.Cache.SnapshotSizeMB,
		SnapshotTTL:    time.Duration(cfg.Cache.SnapshotTTLMinutes) * time.Minute,
		CanvasPoolSize: cfg.Cache.CanvasPoolSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize mask service
	maskService := service.NewMaskService(service.Config{
		Store:      store,
		Cache:      cacheManager,
		Rasterizer: render.NewRasterizer(),
	})

	// Live stroke feed for concurrent viewers
	hub := api.NewHub(cfg.Server.CORSOrigins)
	defer hub.Close()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Service:     maskService,
		CORSOrigins: cfg.Server.CORSOrigins,
		Hub:         hub,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

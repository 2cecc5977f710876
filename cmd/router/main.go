package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm_router/internal/config"
	"llm_router/internal/httpapi"
	"llm_router/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create router with all dependencies
	mux, deps, err := httpapi.NewRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Check the secret store and attempt an unseal if it is sealed.
	// Failures are logged, not fatal: secrets endpoints degrade to 502
	// while routing keeps working off the local catalog cache.
	checkVault(cfg, deps)

	// Bring the catalog cache up to date before serving, then keep it
	// fresh in the background.
	refreshCatalog(cfg, deps)
	stopRefresh := startCatalogScheduler(cfg, deps)

	// Create HTTP server
	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("LLM Router listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	stopRefresh()

	// Stop the usage worker before its backing stores so in-flight
	// batches land.
	if deps.UsageWorker != nil {
		if err := deps.UsageWorker.Stop(); err != nil {
			log.Printf("Failed to stop usage worker: %v", err)
		}
	}

	if deps.Sink != nil {
		if err := deps.Sink.Shutdown(ctx); err != nil {
			log.Printf("Failed to shutdown logging sink: %v", err)
		}
	}

	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
	if deps.DB != nil {
		_ = deps.DB.Close()
	}

	log.Println("Server exited")
}

func checkVault(cfg *config.Config, deps *httpapi.Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Vault.Timeout)
	defer cancel()

	status, err := deps.Vault.Health(ctx)
	if err != nil {
		logging.Warningf("secret store health check failed: %v", err)
		return
	}
	if !status.Sealed {
		return
	}

	if cfg.Vault.UnsealKey == "" {
		logging.Warningf("secret store is sealed and no unseal key is configured")
		return
	}
	if err := deps.Vault.Unseal(ctx, cfg.Vault.UnsealKey); err != nil {
		logging.Errorf("secret store unseal failed: %v", err)
		return
	}
	logging.Infof("secret store unsealed")
}

func refreshCatalog(cfg *config.Config, deps *httpapi.Dependencies) {
	// Budget for the whole category x order fan-out, not one request.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := deps.Fetcher.RefreshIfStale(ctx); err != nil {
		// Serve whatever is already on disk; the scheduler retries.
		logging.Errorf("catalog refresh failed: %v", err)
	}
}

// startCatalogScheduler re-checks catalog staleness on a fixed interval.
// RefreshIfStale is a no-op while the cache is fresh, so the interval can
// be much shorter than the cache TTL.
func startCatalogScheduler(cfg *config.Config, deps *httpapi.Dependencies) func() {
	ticker := time.NewTicker(cfg.Catalog.RefreshInterval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				refreshCatalog(cfg, deps)
			}
		}
	}()

	return func() { close(done) }
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/istominvi/shaurmaniya/internal/catalog"
	"github.com/istominvi/shaurmaniya/internal/config"
	delivery "github.com/istominvi/shaurmaniya/internal/delivery/http"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/logger"
	"github.com/istominvi/shaurmaniya/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	log, logCloser := logger.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("Storefront stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Catalog ---
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	cat = cat.WithAssetBase(cfg.AssetsBase)

	var branches []entity.Branch
	if cfg.BranchesPath != "" {
		branches, err = catalog.LoadBranches(cfg.BranchesPath)
		if err != nil {
			return err
		}
	}
	log.Info("Catalog loaded", "products", cat.Len(), "branches", len(branches))

	// --- Cart storage ---
	store, err := openCartStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	// --- Order sink ---
	sink, err := openOrderSink(cfg, log)
	if err != nil {
		return err
	}
	defer sink.close()

	storefront := service.NewStorefront(cat, branches, store.repo, sink.sink, service.Options{
		DeliveryFee: cfg.DeliveryFee,
		RequireAck:  cfg.RequireAck,
		ClearDelay:  cfg.ClearDelay,
		AsyncWrites: cfg.AsyncWrites,
		Logger:      log,
	})

	// --- HTTP API ---
	handler := delivery.NewHandler(storefront, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(cfg.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.OrderSinkTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go runMaintenance(ctx, cfg, storefront, store, log)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "addr", cfg.HTTPAddr, "cart_store", cfg.CartStore, "order_sink", cfg.OrderSink)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "err", err)
	}
	if err := storefront.Close(shutdownCtx); err != nil {
		log.Error("Failed to flush carts", "err", err)
	}
	return nil
}

// runMaintenance evicts idle sessions from memory and purges expired
// snapshots from stores that do not expire them on their own.
func runMaintenance(ctx context.Context, cfg *config.Config, storefront *service.Storefront, store *cartStore, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			storefront.EvictIdle(ctx, time.Hour)
			if store.purge == nil {
				continue
			}
			n, err := store.purge(ctx, time.Now().Add(-cfg.CartTTL))
			if err != nil {
				log.Error("Failed to purge expired carts", "err", err)
				continue
			}
			if n > 0 {
				log.Info("Purged expired carts", "count", n)
			}
		}
	}
}

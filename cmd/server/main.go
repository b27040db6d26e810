package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thanhnp/coin-tracker/internal/api"
	"github.com/thanhnp/coin-tracker/internal/auth"
	"github.com/thanhnp/coin-tracker/internal/balance"
	"github.com/thanhnp/coin-tracker/internal/config"
	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/logger"
	"github.com/thanhnp/coin-tracker/internal/metrics"
	"github.com/thanhnp/coin-tracker/internal/registry"
	"github.com/thanhnp/coin-tracker/internal/rpc"
	"github.com/thanhnp/coin-tracker/internal/storage"
	"github.com/thanhnp/coin-tracker/internal/sync"
	"github.com/thanhnp/coin-tracker/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	rebuildIndex := flag.Bool("rebuild-index", false, "Rebuild the owner index from address records on startup")
	syncOnStart := flag.Bool("sync-on-start", false, "Schedule a sync of every registered address on startup")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Env)
	slog.SetDefault(log)
	log.Info("starting coin tracker", "ledger", cfg.Ledger.Source, "network", cfg.Ledger.Network)

	metrics.Init()

	// Open the database
	var db *storage.PebbleDB
	if cfg.Pebble.InMemory {
		log.Warn("using in-memory database, data will not survive a restart")
		db, err = storage.NewMemPebbleDB()
	} else {
		log.Info("opening pebble database", "path", cfg.Pebble.Path)
		db, err = storage.NewPebbleDB(cfg.Pebble.Path)
	}
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	stores := storage.NewStores(db)

	// Ledger source
	source, shutdownSource, err := newLedgerSource(cfg, log)
	if err != nil {
		log.Error("failed to create ledger source", "error", err)
		stores.Close()
		os.Exit(1)
	}

	reg := registry.New(source, stores.Addresses, log)
	syncer := sync.NewSynchronizer(source, stores.Transactions, stores.SyncState, log,
		sync.WithWindow(cfg.Sync.Window),
		sync.WithWorkers(cfg.Sync.Workers),
	)
	agg := balance.NewAggregator(source, syncer, cfg.Sync.ReadLimit, log)
	authService := auth.NewService(stores.Users, log)
	pool := worker.NewPool(cfg.Sync.Workers, cfg.Sync.QueueSize, log)

	ctx := context.Background()
	if *rebuildIndex {
		if _, err := reg.RebuildOwnerIndex(ctx); err != nil {
			log.Error("failed to rebuild owner index", "error", err)
		}
	}
	if *syncOnStart {
		scheduleAll(ctx, reg, syncer, pool, log)
	}

	router := api.NewRouter(authService, reg, syncer, agg, pool, cfg.Sync.ReadLimit, log)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in goroutine
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Warn("background syncs cancelled", "error", err)
	}
	if shutdownSource != nil {
		shutdownSource()
	}
	if err := stores.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}

	log.Info("server stopped")
}

// newLedgerSource builds the configured ledger source, wrapped in a TTL cache
// when one is configured. The returned func releases the source's connection.
func newLedgerSource(cfg *config.Config, log *slog.Logger) (ledger.Source, func(), error) {
	params := ledger.NetParams(cfg.Ledger.Network)

	var (
		source   ledger.Source
		shutdown func()
	)
	switch cfg.Ledger.Source {
	case "node":
		client, err := rpc.NewBTCClient(&cfg.Bitcoin, log)
		if err != nil {
			return nil, nil, err
		}
		source = rpc.NewNodeLedger(client, params, cfg.Ledger.TxLimit, log)
		shutdown = client.Shutdown
	default:
		source = ledger.NewBlockchainClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout, log,
			ledger.WithNetParams(params),
			ledger.WithTxLimit(cfg.Ledger.TxLimit),
		)
	}

	if cfg.Ledger.CacheTTL > 0 {
		log.Info("caching ledger responses", "ttl", cfg.Ledger.CacheTTL)
		source = ledger.NewCachingSource(source, cfg.Ledger.CacheTTL)
	}
	return source, shutdown, nil
}

// scheduleAll queues a background sync for every registered address
func scheduleAll(ctx context.Context, reg *registry.Registry, syncer *sync.Synchronizer, pool *worker.Pool, log *slog.Logger) {
	recs, err := reg.ScanAddresses(ctx, nil)
	if err != nil {
		log.Error("failed to scan addresses", "error", err)
		return
	}
	for _, rec := range recs {
		rec := rec
		err := pool.Submit(func(ctx context.Context) {
			if _, err := syncer.Sync(ctx, rec.Owner, rec.Address); err != nil {
				log.Warn("startup sync failed", "address", rec.Address, "error", err)
			}
		})
		if err != nil {
			log.Warn("startup sync not scheduled", "address", rec.Address, "error", err)
		}
	}
	log.Info("scheduled startup syncs", "addresses", len(recs))
}

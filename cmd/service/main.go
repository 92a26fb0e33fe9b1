// Package main provides the entry point for the explorer service.
// The explorer serves display-ready views of an EVM chain (recent blocks,
// block details, transaction receipts and account holdings) over HTTP and
// optionally publishes the home feed to NATS JetStream as the head moves.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/joseerobless/blockexplorer/internal/api"
	"github.com/joseerobless/blockexplorer/internal/cache"
	"github.com/joseerobless/blockexplorer/internal/chain"
	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/internal/pool"
	"github.com/joseerobless/blockexplorer/internal/pub"
	"github.com/joseerobless/blockexplorer/internal/stats"
	"github.com/joseerobless/blockexplorer/internal/syncer"
	"github.com/joseerobless/blockexplorer/internal/util"
	"github.com/knadh/koanf/v2"
)

const (
	// defaultGracefulShutdownPeriod defines the maximum time allowed for graceful shutdown
	// before forcefully terminating the application.
	defaultGracefulShutdownPeriod = time.Second * 30

	// defaultWorkerPoolMultiplier is the multiplier used to calculate default worker pool size
	// based on CPU count when pool_size is not explicitly configured.
	defaultWorkerPoolMultiplier = 3
)

var (
	// build is set during compilation via -ldflags "-X main.build=<version>"
	build = "dev"

	// confFlag holds the path to the configuration file
	confFlag string

	// lo is the global structured logger instance
	lo *slog.Logger

	// ko is the global configuration instance
	ko *koanf.Koanf
)

func init() {
	flag.StringVar(&confFlag, "config", "config.toml", "Path to configuration file (TOML format)")
	flag.Parse()

	lo = util.InitLogger()
	ko = util.InitConfig(lo, confFlag)
}

// main initializes and starts all service components including:
// - Chain RPC client for blockchain data fetching
// - Worker pool for concurrent provider lookups
// - Explorer resolvers and the shared home feed
// - Session cache for per-client views
// - Stats collector for monitoring
// - NATS JetStream publisher and real-time head syncer (optional)
// - HTTP API server for views, metrics and health checks
func main() {
	lo.Info("starting explorer service", "build", build, "version", build)

	var wg sync.WaitGroup
	ctx, stop := notifyShutdown()

	chain, err := chain.NewRPCFetcher(chain.EthRPCOpts{
		RPCEndpoint: ko.MustString("chain.rpc_endpoint"),
		NftEndpoint: ko.String("chain.nft_endpoint"),
		APIKey:      ko.String("chain.api_key"),
		ChainID:     ko.MustInt64("chain.chainid"),
	})
	if err != nil {
		lo.Error("could not initialize chain client", "error", err)
		os.Exit(1)
	}
	lo.Debug("loaded rpc fetcher")

	poolSize := ko.Int("core.pool_size")
	if poolSize <= 0 {
		poolSize = runtime.NumCPU() * defaultWorkerPoolMultiplier
		lo.Info("using default worker pool size", "cpu_count", runtime.NumCPU(), "pool_size", poolSize)
	}
	workerPool := pool.New(pool.PoolOpts{
		Logg:        lo,
		WorkerCount: poolSize,
	})
	lo.Debug("bootstrapped worker pool")

	explorer := explorer.New(explorer.ExplorerOpts{
		Chain:      chain,
		Pool:       workerPool,
		Logg:       lo,
		WindowSize: ko.Int("core.window_size"),
	})
	feed := explorer.NewFeedSession(0)
	lo.Debug("bootstrapped explorer")

	sessions, janitor := cache.New(cache.CacheOpts{
		Explorer:    explorer,
		IdleTimeout: time.Duration(ko.Int("core.session_idle_mins")) * time.Minute,
		Logg:        lo,
	})
	lo.Debug("bootstrapped session cache")

	stats := stats.New(stats.StatsOpts{
		Cache: sessions,
		Logg:  lo,
		Pool:  workerPool,
	})
	lo.Debug("bootstrapped stats provider")

	feedPub := pub.NewNoopPub()
	if ko.String("nats.endpoint") != "" {
		feedPub, err = pub.NewJetStreamPub(pub.JetStreamOpts{
			Endpoint:        ko.MustString("nats.endpoint"),
			PersistDuration: time.Duration(ko.MustInt("nats.persist_duration_mins")) * time.Minute,
			Logg:            lo,
		})
		if err != nil {
			lo.Error("could not initialize jetstream pub", "error", err)
			os.Exit(1)
		}
		lo.Debug("loaded jetstream publisher")
	}

	var chainSyncer *syncer.Syncer
	if ko.String("chain.ws_endpoint") != "" {
		chainSyncer, err = syncer.New(syncer.SyncerOpts{
			Explorer:          explorer,
			Feed:              feed,
			Logg:              lo,
			Pub:               feedPub,
			Stats:             stats,
			WebSocketEndpoint: ko.MustString("chain.ws_endpoint"),
		})
		if err != nil {
			lo.Error("could not initialize chain syncer", "error", err)
			os.Exit(1)
		}
		lo.Debug("bootstrapped realtime syncer")
	}

	apiServer := &http.Server{
		Addr: ko.MustString("api.address"),
		Handler: api.New(api.APIOpts{
			Explorer: explorer,
			Cache:    sessions,
			Feed:     feed,
			Stats:    stats,
			Logg:     lo,
		}),
	}
	lo.Debug("bootstrapped API server")
	lo.Debug("starting routines")

	if chainSyncer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chainSyncer.Start()
			lo.Info("chain syncer started")
		}()
	}

	// Start background loops
	wg.Add(2)
	go func() {
		defer wg.Done()
		janitor.Start()
	}()
	go func() {
		defer wg.Done()
		stats.Report()
	}()

	// Start HTTP API server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		apiAddr := ko.MustString("api.address")
		lo.Info("starting API server", "address", apiAddr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lo.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	lo.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulShutdownPeriod)
	defer cancel()

	// Perform graceful shutdown in a separate goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		lo.Info("stopping service components")
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			lo.Error("API server shutdown error", "error", err)
		}
		if chainSyncer != nil {
			chainSyncer.Stop()
		}
		janitor.Stop()
		stats.Stop()
		workerPool.Stop()
		feedPub.Close()
		lo.Info("graceful shutdown complete")
	}()

	// Wait for shutdown completion or timeout
	shutdownDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		stop()
		lo.Info("service stopped successfully")
		os.Exit(0)
	case <-shutdownCtx.Done():
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			stop()
			lo.Error("graceful shutdown timeout exceeded, forcing exit")
			os.Exit(1)
		}
	}
}

// notifyShutdown creates a context that is cancelled when the application receives
// a shutdown signal (SIGINT, SIGTERM, or interrupt).
func notifyShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
}

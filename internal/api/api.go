// Package api exposes the explorer views over HTTP, together with the
// Prometheus metrics, service statistics and health endpoints.
package api

import (
	"log/slog"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joseerobless/blockexplorer/internal/cache"
	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/internal/stats"
	"github.com/uptrace/bunrouter"
)

const (
	// metricsPath is the HTTP path for Prometheus metrics endpoint
	metricsPath = "/metrics"
	// statsPath is the HTTP path for service statistics endpoint
	statsPath = "/stats"
	// healthPath is the HTTP path for health check endpoint
	healthPath = "/health"

	homePath        = "/"
	blocksPath      = "/blocks"
	blockPath       = "/block/:height"
	transactionPath = "/transaction/:hash"
	accountsPath    = "/accounts"
	accountPath     = "/accounts/:address"
)

type (
	// APIOpts contains configuration options for creating the HTTP router.
	APIOpts struct {
		Explorer *explorer.Explorer    // Resolvers behind every view
		Cache    cache.Cache           // Per-client view sessions
		Feed     *explorer.FeedSession // Shared home feed
		Stats    *stats.Stats          // Statistics collector
		Logg     *slog.Logger          // Structured logger
	}

	// handlers serves the explorer views.
	handlers struct {
		explorer *explorer.Explorer
		cache    cache.Cache
		feed     *explorer.FeedSession
		logg     *slog.Logger
	}
)

// New creates a new HTTP router with all API endpoints registered.
func New(o APIOpts) *bunrouter.Router {
	router := bunrouter.New(
		bunrouter.Use(errorHandler(o.Logg)),
	)

	h := &handlers{
		explorer: o.Explorer,
		cache:    o.Cache,
		feed:     o.Feed,
		logg:     o.Logg,
	}

	router.GET(homePath, h.recentBlocks)
	router.GET(blocksPath, h.recentBlocks)
	router.GET(blockPath, h.block)
	router.GET(transactionPath, h.transaction)
	router.GET(accountPath, h.account)
	router.POST(accountsPath, h.submitAccount)

	router.GET(metricsPath, metricsHandler())
	router.GET(statsPath, statsHandler(o.Stats))
	router.GET(healthPath, healthHandler())

	return router
}

// metricsHandler returns a handler that serves Prometheus metrics.
func metricsHandler() bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, _ bunrouter.Request) error {
		metrics.WritePrometheus(w, true)
		return nil
	}
}

// statsHandler returns a handler that serves service statistics.
func statsHandler(s *stats.Stats) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, _ bunrouter.Request) error {
		return writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// healthHandler returns a handler for health checks.
func healthHandler() bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, _ bunrouter.Request) error {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
		return nil
	}
}

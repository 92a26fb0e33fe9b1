// Package stats tracks the chain head, feed refreshes and live sessions of
// the explorer and reports them on a timer and over HTTP.
package stats

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/joseerobless/blockexplorer/internal/cache"
	"github.com/joseerobless/blockexplorer/internal/pool"
)

const reportInterval = 15 * time.Second

type (
	// StatsOpts wires Stats to the components it reads from.
	StatsOpts struct {
		Cache cache.Cache  // Live view sessions
		Logg  *slog.Logger // Structured logger
		Pool  *pool.Pool   // Lookup workers
	}

	// Stats holds the counters shared by the head syncer and the HTTP API.
	Stats struct {
		cache       cache.Cache
		logg        *slog.Logger
		pool        *pool.Pool
		stopCh      chan struct{}
		latestBlock atomic.Uint64
		feedUpdates atomic.Uint64
	}
)

func New(o StatsOpts) *Stats {
	return &Stats{
		cache:  o.Cache,
		logg:   o.Logg,
		pool:   o.Pool,
		stopCh: make(chan struct{}),
	}
}

// SetLatestBlock records a head announced by the provider or reached by the feed.
func (s *Stats) SetLatestBlock(v uint64) {
	s.latestBlock.Store(v)
}

func (s *Stats) GetLatestBlock() uint64 {
	return s.latestBlock.Load()
}

// IncFeedUpdates counts a home feed window published for a new head.
func (s *Stats) IncFeedUpdates() {
	s.feedUpdates.Add(1)
}

// Stop ends Report.
func (s *Stats) Stop() {
	close(s.stopCh)
	s.logg.Debug("stats stopped")
}

// Snapshot returns the head, feed and session counters keyed as the
// /stats endpoint serves them.
func (s *Stats) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"latestBlock":       s.GetLatestBlock(),
		"feedUpdates":       s.feedUpdates.Load(),
		"poolQueueSize":     s.pool.Size(),
		"poolActiveWorkers": s.pool.ActiveWorkers(),
		"sessions":          s.cache.Size(),
	}
}

// Report logs the counters every reportInterval until Stop is called.
func (s *Stats) Report() {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.logg.Debug("stats reporter shutting down")
			return
		case <-ticker.C:
			s.logg.Info("explorer statistics",
				"latest_block", s.GetLatestBlock(),
				"feed_updates", s.feedUpdates.Load(),
				"pool_queue_size", s.pool.Size(),
				"pool_active_workers", s.pool.ActiveWorkers(),
				"sessions", s.cache.Size(),
			)
		}
	}
}

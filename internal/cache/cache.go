// Package cache keeps the view sessions of the explorer's HTTP clients, keyed
// by the session ID the client sends along with its requests.
package cache

import (
	"log/slog"
	"time"

	"github.com/joseerobless/blockexplorer/internal/explorer"
)

const (
	// sweepInterval is the interval at which idle sessions are evicted
	sweepInterval = time.Minute
	// defaultIdleTimeout is used when no idle timeout is configured
	defaultIdleTimeout = 30 * time.Minute
)

type (
	// Cache defines the interface for session storage.
	Cache interface {
		// Account returns the accounts view session for id, creating it if needed.
		Account(id string) *explorer.AccountSession

		// Receipt returns the transaction view session for id, creating it if needed.
		Receipt(id string) *explorer.ReceiptSession

		// Block returns the block view session for id, creating it if needed.
		Block(id string) *explorer.BlockSession

		// Remove drops every session kept for id.
		Remove(id string)

		// Sweep drops the sessions not used for longer than maxIdle and
		// returns how many were dropped.
		Sweep(maxIdle time.Duration) int

		// Size returns the current number of sessions.
		Size() int
	}

	// CacheOpts contains configuration options for creating a new Cache instance.
	CacheOpts struct {
		Explorer    *explorer.Explorer // Explorer the sessions resolve through
		IdleTimeout time.Duration      // Idle sessions are evicted after this long
		Logg        *slog.Logger       // Structured logger
	}
)

// Janitor periodically evicts idle sessions from a Cache.
type Janitor struct {
	cache       Cache
	idleTimeout time.Duration
	logg        *slog.Logger
	stopCh      chan struct{}
}

// New creates a new in-memory session Cache and its janitor.
func New(o CacheOpts) (Cache, *Janitor) {
	idleTimeout := o.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	o.Logg.Info("initializing session cache", "idle_timeout", idleTimeout)

	cache := NewMapCache(o.Explorer)

	return cache, &Janitor{
		cache:       cache,
		idleTimeout: idleTimeout,
		logg:        o.Logg,
		stopCh:      make(chan struct{}),
	}
}

// Start evicts idle sessions every sweepInterval until Stop is called.
func (j *Janitor) Start() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			j.logg.Debug("session janitor shutting down")
			return
		case <-ticker.C:
			if evicted := j.cache.Sweep(j.idleTimeout); evicted > 0 {
				j.logg.Debug("evicted idle sessions", "evicted", evicted, "remaining", j.cache.Size())
			}
		}
	}
}

// Stop stops the janitor goroutine.
func (j *Janitor) Stop() {
	close(j.stopCh)
}

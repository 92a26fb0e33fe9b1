// Package explorer turns user navigation (a block height, a transaction hash,
// a wallet address) into display-ready view models. Every resolver reads
// through the injected chain client and never keeps chain data between
// calls; per-view state lives in the sessions.
package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joseerobless/blockexplorer/internal/chain"
	"github.com/joseerobless/blockexplorer/internal/pool"
)

const (
	// DefaultWindowSize is the number of blocks shown on the home feed.
	DefaultWindowSize = 10

	opRecent  = "recent_blocks"
	opBlock   = "block"
	opReceipt = "receipt"
	opAccount = "account"
	opBalance = "balance"
	opNfts    = "nfts"
	opName    = "name"
)

type (
	// ExplorerOpts contains configuration options for creating a new Explorer.
	ExplorerOpts struct {
		Chain      chain.Chain  // Chain client for blockchain data
		Pool       *pool.Pool   // Worker pool for concurrent lookups
		Logg       *slog.Logger // Structured logger
		WindowSize int          // Recent blocks window, DefaultWindowSize when <= 0
	}

	// Explorer hosts the resolvers. It holds no chain data and is safe for
	// concurrent use by any number of views.
	Explorer struct {
		chain      chain.Chain
		pool       *pool.Pool
		logg       *slog.Logger
		windowSize int
	}
)

// New creates a new Explorer instance with the provided options.
func New(o ExplorerOpts) *Explorer {
	windowSize := o.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	return &Explorer{
		chain:      o.Chain,
		pool:       o.Pool,
		logg:       o.Logg,
		windowSize: windowSize,
	}
}

// WindowSize returns the configured recent blocks window.
func (e *Explorer) WindowSize() int {
	return e.windowSize
}

// CurrentHeight returns the chain head as seen by the provider.
func (e *Explorer) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := e.chain.CurrentHeight(ctx)
	if err != nil {
		return 0, resolutionError(opRecent, err)
	}
	return height, nil
}

// track counts a resolution and records its latency.
func track(op string, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`explorer_resolutions_total{op=%q}`, op)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`explorer_resolution_duration_seconds{op=%q}`, op)).UpdateDuration(start)
}

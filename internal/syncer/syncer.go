// Package syncer keeps the home feed in step with the chain head. It
// subscribes to new block headers via WebSocket and refreshes the recent
// blocks window every time the head moves.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/internal/pub"
	"github.com/joseerobless/blockexplorer/internal/stats"
)

type (
	// SyncerOpts contains configuration options for creating a new Syncer.
	SyncerOpts struct {
		Explorer          *explorer.Explorer    // Explorer used to read the head
		Feed              *explorer.FeedSession // Home feed kept in step with the head
		Logg              *slog.Logger          // Structured logger
		Pub               pub.Pub               // Publisher for refreshed feeds
		Stats             *stats.Stats          // Statistics collector
		WebSocketEndpoint string                // WebSocket RPC endpoint for real-time subscriptions
	}

	// Syncer manages real-time head tracking via WebSocket subscriptions.
	Syncer struct {
		ethClient   *ethclient.Client
		feed        *explorer.FeedSession
		logg        *slog.Logger
		pub         pub.Pub
		realtimeSub ethereum.Subscription
		stats       *stats.Stats
	}
)

// New creates a new Syncer, loads the feed for the current head and connects
// to the WebSocket endpoint.
func New(o SyncerOpts) (*Syncer, error) {
	ctx := context.Background()

	latestBlock, err := o.Explorer.CurrentHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain head: %w", err)
	}

	ethClient, err := ethclient.Dial(o.WebSocketEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket endpoint: %w", err)
	}

	s := &Syncer{
		ethClient: ethClient,
		feed:      o.Feed,
		logg:      o.Logg,
		pub:       o.Pub,
		stats:     o.Stats,
	}

	if err := s.advance(ctx, latestBlock); err != nil {
		o.Logg.Warn("initial feed load failed", "head", latestBlock, "error", err)
	}
	o.Logg.Info("initialized feed", "head", latestBlock)

	return s, nil
}

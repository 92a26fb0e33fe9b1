package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/joseerobless/blockexplorer/internal/explorer"
)

const (
	// resubscribeInterval is the delay before attempting to resubscribe after a connection failure
	resubscribeInterval = 2 * time.Second
	// newHeadersBufferSize is the buffer size for the new headers channel
	newHeadersBufferSize = 1
	// advanceTimeout bounds the refresh of one feed window
	advanceTimeout = 30 * time.Second
)

// HeadFn is a function type for handling a new chain head
type HeadFn func(uint64)

// Stop stops the real-time subscription and closes the WebSocket connection.
func (s *Syncer) Stop() {
	if s.realtimeSub != nil {
		s.realtimeSub.Unsubscribe()
		s.logg.Info("realtime subscription stopped")
	}
	s.ethClient.Close()
}

// Start begins subscribing to new block headers.
// It automatically resubscribes on connection failures.
func (s *Syncer) Start() {
	s.realtimeSub = event.ResubscribeErr(resubscribeInterval, s.resubscribeFn())
	s.logg.Info("realtime syncer started")
}

// receiveRealtimeHeads subscribes to new block headers and hands every head to fn.
func (s *Syncer) receiveRealtimeHeads(ctx context.Context, fn HeadFn) (ethereum.Subscription, error) {
	newHeadersReceiver := make(chan *types.Header, newHeadersBufferSize)
	sub, err := s.ethClient.SubscribeNewHead(ctx, newHeadersReceiver)
	if err != nil {
		return nil, err
	}

	s.logg.Info("realtime syncer connected to WebSocket endpoint")

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()

		for {
			select {
			case header := <-newHeadersReceiver:
				fn(header.Number.Uint64())
			case <-quit:
				s.logg.Info("realtime syncer shutting down")
				return nil
			case err := <-sub.Err():
				if err != nil {
					s.logg.Error("subscription error", "error", err)
				}
				return err
			}
		}
	}), nil
}

// onHead refreshes the feed for head without blocking the subscription.
// A refresh still running when a newer head arrives is discarded by the feed.
func (s *Syncer) onHead(head uint64) {
	s.stats.SetLatestBlock(head)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), advanceTimeout)
		defer cancel()

		if err := s.advance(ctx, head); err != nil {
			if errors.Is(err, explorer.ErrSuperseded) {
				s.logg.Debug("feed refresh superseded", "head", head)
				return
			}
			s.logg.Error("failed to refresh feed", "head", head, "error", err)
		}
	}()
}

// advance moves the feed to head and publishes the new window.
func (s *Syncer) advance(ctx context.Context, head uint64) error {
	feed, err := s.feed.Advance(ctx, head)
	if err != nil {
		return err
	}
	if feed.Head != head {
		// A newer head took over; its own advance publishes it.
		s.logg.Debug("feed moved past head", "head", head, "feed_head", feed.Head)
		return nil
	}
	s.stats.SetLatestBlock(head)
	s.stats.IncFeedUpdates()

	if err := s.pub.Send(ctx, feed); err != nil {
		return err
	}
	s.logg.Debug("published feed", "head", head, "blocks", len(feed.Blocks))

	return nil
}

// resubscribeFn returns a function that handles resubscription on connection failures.
func (s *Syncer) resubscribeFn() event.ResubscribeErrFunc {
	return func(ctx context.Context, err error) (event.Subscription, error) {
		if err != nil {
			s.logg.Warn("resubscribing after connection failure", "error", err)
		}
		return s.receiveRealtimeHeads(ctx, s.onHead)
	}
}

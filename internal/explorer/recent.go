package explorer

import (
	"context"
	"time"

	"github.com/joseerobless/blockexplorer/pkg/view"
)

// FetchRecent returns up to windowSize block summaries starting at
// latestHeight and walking back one height at a time. The window is cut
// short at height 0. A windowSize <= 0 uses the configured window.
//
// Lookups run concurrently on the pool and each result lands on its own
// index, so the output is always descending by height. Any failed lookup
// aborts the whole fetch; no partial window is returned. Nothing is cached:
// a new head means a new fetch.
func (e *Explorer) FetchRecent(ctx context.Context, latestHeight int64, windowSize int) ([]view.BlockSummary, error) {
	defer track(opRecent, time.Now())

	if windowSize <= 0 {
		windowSize = e.windowSize
	}
	if latestHeight < 0 {
		return []view.BlockSummary{}, nil
	}
	if int64(windowSize) > latestHeight+1 {
		windowSize = int(latestHeight + 1)
	}

	blocks := make([]view.BlockSummary, windowSize)
	err := e.pool.Indexed(ctx, windowSize, func(ctx context.Context, i int) error {
		height := latestHeight - int64(i)

		block, err := e.chain.GetBlock(ctx, height)
		if err != nil {
			return resolutionError(opRecent, err)
		}
		if block.Height != uint64(height) {
			return consistencyError(opRecent, "requested block %d, provider returned %d", height, block.Height)
		}

		blocks[i] = block
		return nil
	})
	if err != nil {
		e.logg.Warn("recent blocks fetch failed", "latest_height", latestHeight, "window_size", windowSize, "error", err)
		return nil, resolutionError(opRecent, err)
	}

	return blocks, nil
}

// Feed resolves the current head and the recent blocks window below it.
func (e *Explorer) Feed(ctx context.Context, windowSize int) (view.Feed, error) {
	head, err := e.CurrentHeight(ctx)
	if err != nil {
		return view.Feed{}, err
	}

	blocks, err := e.FetchRecent(ctx, int64(head), windowSize)
	if err != nil {
		return view.Feed{}, err
	}

	return view.Feed{Head: head, Blocks: blocks}, nil
}

package explorer

import (
	"context"
	"time"

	"github.com/joseerobless/blockexplorer/pkg/view"
)

// ResolveBlock fetches a block with its transactions in inclusion order.
// On failure no partial block is returned: a nil detail means "not yet
// available", never "zero transactions".
func (e *Explorer) ResolveBlock(ctx context.Context, height int64) (*view.BlockDetail, error) {
	defer track(opBlock, time.Now())

	detail, err := e.chain.GetBlockWithTransactions(ctx, height)
	if err != nil {
		e.logg.Debug("block resolution failed", "height", height, "error", err)
		return nil, resolutionError(opBlock, err)
	}
	if detail.Height != uint64(height) {
		return nil, consistencyError(opBlock, "requested block %d, provider returned %d", height, detail.Height)
	}
	if detail.Transactions == nil {
		detail.Transactions = []view.TransactionSummary{}
	}

	return &detail, nil
}

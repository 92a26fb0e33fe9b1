package explorer

import (
	"context"
	"strings"
	"time"

	"github.com/joseerobless/blockexplorer/internal/chain"
	"github.com/joseerobless/blockexplorer/pkg/view"
	"golang.org/x/sync/errgroup"
)

const (
	// receiptStatusSuccess is the receipt status of a successful transaction
	receiptStatusSuccess = 1
	// defaultPollInterval is used by AwaitReceipt when no interval is given
	defaultPollInterval = 4 * time.Second
)

// ResolveReceipt fetches the receipt and the transaction body of hash and
// merges them. Both lookups must finish before anything is returned.
//
// A nil receipt with a nil error means the transaction is unknown or still
// pending; callers poll again later. Value and Nonce come from the
// transaction, every other field from the receipt.
func (e *Explorer) ResolveReceipt(ctx context.Context, hash string) (*view.TransactionReceipt, error) {
	defer track(opReceipt, time.Now())

	var (
		receipt *chain.Receipt
		tx      *chain.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		receipt, err = e.chain.GetTransactionReceipt(gctx, hash)
		return err
	})
	g.Go(func() error {
		var err error
		tx, err = e.chain.GetTransaction(gctx, hash)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logg.Debug("receipt resolution failed", "tx_hash", hash, "error", err)
		return nil, resolutionError(opReceipt, err)
	}

	if receipt == nil || tx == nil {
		return nil, nil
	}

	return mergeReceipt(receipt, tx)
}

// AwaitReceipt polls ResolveReceipt every interval until the receipt is
// available, a lookup fails, or ctx is done.
func (e *Explorer) AwaitReceipt(ctx context.Context, hash string, interval time.Duration) (*view.TransactionReceipt, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := e.ResolveReceipt(ctx, hash)
		if err != nil || receipt != nil {
			return receipt, err
		}
		e.logg.Debug("transaction pending, polling again", "tx_hash", hash, "interval", interval)

		select {
		case <-ctx.Done():
			return nil, resolutionError(opReceipt, ctx.Err())
		case <-ticker.C:
		}
	}
}

func mergeReceipt(receipt *chain.Receipt, tx *chain.Transaction) (*view.TransactionReceipt, error) {
	if !strings.EqualFold(receipt.TxHash, tx.Hash) {
		return nil, consistencyError(opReceipt, "receipt hash %s does not match transaction hash %s", receipt.TxHash, tx.Hash)
	}

	return &view.TransactionReceipt{
		Hash:              receipt.TxHash,
		Status:            receipt.Status == receiptStatusSuccess,
		BlockNumber:       receipt.BlockNumber,
		From:              receipt.From,
		To:                receipt.To,
		Confirmations:     receipt.Confirmations,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		GasUsed:           receipt.GasUsed,
		Type:              receipt.Type,
		TransactionIndex:  receipt.TransactionIndex,
		Value:             tx.Value,
		Nonce:             tx.Nonce,
	}, nil
}

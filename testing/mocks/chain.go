package mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/joseerobless/blockexplorer/internal/chain"
	"github.com/joseerobless/blockexplorer/pkg/view"
)

// Values that can be used for testing. They are valid, non-nil values for
// the types the explorer components need.
var (
	NoopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

	GenericError = errors.New("dummy error")

	GenericHeight = uint64(100)

	GenericHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

	GenericAddress = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

	// GenericName resolves to GenericAddress on the baseline chain.
	GenericName = "vitalik.eth"

	GenericMiner = "0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5"

	GenericValue, _ = new(big.Int).SetString("1000000000000000000", 10)

	GenericNfts = []view.NftSummary{
		{Title: "Punk #1", ThumbnailURL: "https://img/1.png"},
		{Title: view.UntitledNft, ThumbnailURL: view.FallbackThumbnailURL},
	}
)

// Chain is a function-field fake of chain.Chain.
type Chain struct {
	CurrentHeightFunc            func(ctx context.Context) (uint64, error)
	GetBlockFunc                 func(ctx context.Context, height int64) (view.BlockSummary, error)
	GetBlockWithTransactionsFunc func(ctx context.Context, height int64) (view.BlockDetail, error)
	GetTransactionReceiptFunc    func(ctx context.Context, hash string) (*chain.Receipt, error)
	GetTransactionFunc           func(ctx context.Context, hash string) (*chain.Transaction, error)
	GetBalanceFunc               func(ctx context.Context, address string) (*big.Int, error)
	GetNftsForOwnerFunc          func(ctx context.Context, address string) ([]view.NftSummary, error)
	ResolveNameFunc              func(ctx context.Context, name string) (string, error)
}

// BaselineChain returns a fake chain whose head is GenericHeight and that
// answers every lookup with generic values.
func BaselineChain(t *testing.T) *Chain {
	t.Helper()

	return &Chain{
		CurrentHeightFunc: func(context.Context) (uint64, error) {
			return GenericHeight, nil
		},
		GetBlockFunc: func(_ context.Context, height int64) (view.BlockSummary, error) {
			if height < 0 || uint64(height) > GenericHeight {
				return view.BlockSummary{}, chain.ErrNotFound
			}
			return GenericBlockSummary(uint64(height)), nil
		},
		GetBlockWithTransactionsFunc: func(_ context.Context, height int64) (view.BlockDetail, error) {
			if height < 0 || uint64(height) > GenericHeight {
				return view.BlockDetail{}, chain.ErrNotFound
			}
			return GenericBlockDetail(uint64(height)), nil
		},
		GetTransactionReceiptFunc: func(context.Context, string) (*chain.Receipt, error) {
			return GenericReceipt(), nil
		},
		GetTransactionFunc: func(context.Context, string) (*chain.Transaction, error) {
			return GenericTransaction(), nil
		},
		GetBalanceFunc: func(context.Context, string) (*big.Int, error) {
			return new(big.Int).Set(GenericValue), nil
		},
		GetNftsForOwnerFunc: func(context.Context, string) ([]view.NftSummary, error) {
			return append([]view.NftSummary{}, GenericNfts...), nil
		},
		ResolveNameFunc: func(_ context.Context, name string) (string, error) {
			if name != GenericName {
				return "", chain.ErrInvalidAddress
			}
			return GenericAddress, nil
		},
	}
}

func (c *Chain) CurrentHeight(ctx context.Context) (uint64, error) {
	return c.CurrentHeightFunc(ctx)
}

func (c *Chain) GetBlock(ctx context.Context, height int64) (view.BlockSummary, error) {
	return c.GetBlockFunc(ctx, height)
}

func (c *Chain) GetBlockWithTransactions(ctx context.Context, height int64) (view.BlockDetail, error) {
	return c.GetBlockWithTransactionsFunc(ctx, height)
}

func (c *Chain) GetTransactionReceipt(ctx context.Context, hash string) (*chain.Receipt, error) {
	return c.GetTransactionReceiptFunc(ctx, hash)
}

func (c *Chain) GetTransaction(ctx context.Context, hash string) (*chain.Transaction, error) {
	return c.GetTransactionFunc(ctx, hash)
}

func (c *Chain) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return c.GetBalanceFunc(ctx, address)
}

func (c *Chain) GetNftsForOwner(ctx context.Context, address string) ([]view.NftSummary, error) {
	return c.GetNftsForOwnerFunc(ctx, address)
}

func (c *Chain) ResolveName(ctx context.Context, name string) (string, error) {
	return c.ResolveNameFunc(ctx, name)
}

// GenericBlockSummary returns a deterministic summary for a height.
func GenericBlockSummary(height uint64) view.BlockSummary {
	return view.BlockSummary{
		Height:  height,
		Miner:   GenericMiner,
		GasUsed: 21000 * height,
	}
}

// GenericBlockDetail returns a block at height with three transactions, the
// last one a contract creation.
func GenericBlockDetail(height uint64) view.BlockDetail {
	to := GenericAddress
	return view.BlockDetail{
		BlockSummary: GenericBlockSummary(height),
		Transactions: []view.TransactionSummary{
			{Hash: "0x03", BlockNumber: height, From: GenericMiner, To: &to, Value: big.NewInt(3)},
			{Hash: "0x01", BlockNumber: height, From: GenericMiner, To: &to, Value: big.NewInt(1)},
			{Hash: "0x02", BlockNumber: height, From: GenericAddress, To: nil, Value: big.NewInt(0)},
		},
	}
}

// GenericReceipt returns a successful receipt for GenericHash.
func GenericReceipt() *chain.Receipt {
	to := GenericAddress
	return &chain.Receipt{
		TxHash:            GenericHash,
		Status:            1,
		BlockNumber:       GenericHeight - 2,
		From:              GenericMiner,
		To:                &to,
		Confirmations:     3,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
		GasUsed:           21000,
		Type:              2,
		TransactionIndex:  4,
	}
}

// GenericTransaction returns the transaction body of GenericHash.
func GenericTransaction() *chain.Transaction {
	to := GenericAddress
	return &chain.Transaction{
		Hash:  GenericHash,
		From:  GenericMiner,
		To:    &to,
		Value: new(big.Int).Set(GenericValue),
		Nonce: 42,
	}
}

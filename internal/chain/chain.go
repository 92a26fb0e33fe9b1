// Package chain provides read-only access to the remote chain-data provider.
// It abstracts the underlying RPC client implementation and exposes blocks,
// transactions, receipts, balances and NFT holdings as typed values.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/joseerobless/blockexplorer/pkg/view"
)

var (
	// ErrNotFound is returned when a requested height does not exist yet.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAddress is returned for malformed account addresses.
	ErrInvalidAddress = errors.New("invalid address")
)

type (
	// Chain defines the interface for blockchain data access.
	// All methods are read-only and safe for concurrent use.
	Chain interface {
		// CurrentHeight returns the latest block height known to the provider.
		CurrentHeight(context.Context) (uint64, error)

		// GetBlock fetches the summary of a block by height.
		// Returns ErrNotFound for negative heights or heights above the head.
		GetBlock(context.Context, int64) (view.BlockSummary, error)

		// GetBlockWithTransactions fetches a block with all its transactions.
		// Returns ErrNotFound under the same conditions as GetBlock.
		GetBlockWithTransactions(context.Context, int64) (view.BlockDetail, error)

		// GetTransactionReceipt fetches a receipt by transaction hash.
		// Returns nil and no error when the transaction is unknown or pending.
		GetTransactionReceipt(context.Context, string) (*Receipt, error)

		// GetTransaction fetches a transaction by hash.
		// Returns nil and no error when the transaction is unknown or pending.
		GetTransaction(context.Context, string) (*Transaction, error)

		// GetBalance returns the balance of an address in wei.
		GetBalance(context.Context, string) (*big.Int, error)

		// GetNftsForOwner enumerates the NFTs held by an address.
		GetNftsForOwner(context.Context, string) ([]view.NftSummary, error)

		// ResolveName resolves an ENS name to a hex address.
		// Returns ErrInvalidAddress when the name does not resolve.
		ResolveName(context.Context, string) (string, error)
	}

	// Receipt is the post-execution record of a transaction as reported by
	// the provider.
	Receipt struct {
		TxHash            string
		Status            uint64
		BlockNumber       uint64
		From              string
		To                *string
		Confirmations     uint64
		EffectiveGasPrice *big.Int
		GasUsed           uint64
		Type              uint8
		TransactionIndex  uint
	}

	// Transaction is a transaction body as reported by the provider.
	Transaction struct {
		Hash  string
		From  string
		To    *string
		Value *big.Int
		Nonce uint64
	}
)

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/grassrootseconomics/ethutils"
	"github.com/joseerobless/blockexplorer/pkg/view"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
)

const (
	// defaultRPCClientTimeout is the default HTTP client timeout for RPC requests.
	defaultRPCClientTimeout = 10 * time.Second
	// hashHexLength is the length of a 0x-prefixed 32 byte hash
	hashHexLength = 66
)

type (
	// EthRPCOpts contains configuration options for creating a new EthRPC client.
	EthRPCOpts struct {
		RPCEndpoint string // RPC endpoint URL (HTTP)
		NftEndpoint string // NFT API base URL, empty disables NFT enumeration
		APIKey      string // Provider key appended to both endpoints
		ChainID     int64  // Chain ID used to recover transaction senders
	}

	// EthRPC implements the Chain interface using Ethereum RPC calls.
	// Blocks, heights and balances go through w3; receipts and transaction
	// bodies are decoded from the raw provider objects so that sender,
	// recipient and pending state survive.
	EthRPC struct {
		provider  *ethutils.Provider
		rpcClient *rpc.Client
		signer    types.Signer
		nfts      *nftAPI
	}

	rpcTransaction struct {
		Hash        common.Hash     `json:"hash"`
		BlockNumber *hexutil.Big    `json:"blockNumber"`
		From        common.Address  `json:"from"`
		To          *common.Address `json:"to"`
		Value       *hexutil.Big    `json:"value"`
		Nonce       hexutil.Uint64  `json:"nonce"`
	}

	rpcReceipt struct {
		TxHash            common.Hash     `json:"transactionHash"`
		Status            hexutil.Uint64  `json:"status"`
		BlockNumber       hexutil.Uint64  `json:"blockNumber"`
		From              common.Address  `json:"from"`
		To                *common.Address `json:"to"`
		EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
		GasUsed           hexutil.Uint64  `json:"gasUsed"`
		Type              hexutil.Uint64  `json:"type"`
		TransactionIndex  hexutil.Uint    `json:"transactionIndex"`
	}
)

// NewRPCFetcher creates a new Chain implementation using HTTP RPC.
// It configures a low-timeout HTTP client for fast failure detection.
func NewRPCFetcher(o EthRPCOpts) (Chain, error) {
	return newEthRPC(o)
}

func newEthRPC(o EthRPCOpts) (*EthRPC, error) {
	rpcEndpoint := withAPIKey(o.RPCEndpoint, o.APIKey)

	rpcClient, err := newRPCClient(rpcEndpoint)
	if err != nil {
		return nil, err
	}

	chainProvider := ethutils.NewProvider(
		rpcEndpoint,
		o.ChainID,
		ethutils.WithClient(w3.NewClient(rpcClient)),
	)

	c := &EthRPC{
		provider:  chainProvider,
		rpcClient: rpcClient,
		signer:    types.LatestSignerForChainID(big.NewInt(o.ChainID)),
	}
	if o.NftEndpoint != "" {
		c.nfts = newNftAPI(withAPIKey(o.NftEndpoint, o.APIKey))
	}

	return c, nil
}

// newRPCClient dials the provider with a configured HTTP client.
func newRPCClient(rpcEndpoint string) (*rpc.Client, error) {
	httpClient := &http.Client{
		Timeout: defaultRPCClientTimeout,
	}

	return rpc.DialOptions(context.Background(), rpcEndpoint, rpc.WithHTTPClient(httpClient))
}

// withAPIKey appends the provider key as the last path segment, the way
// hosted providers expect it.
func withAPIKey(endpoint, apiKey string) string {
	if apiKey == "" {
		return endpoint
	}
	return strings.TrimRight(endpoint, "/") + "/" + apiKey
}

// CurrentHeight returns the latest block number from the chain.
func (c *EthRPC) CurrentHeight(ctx context.Context) (uint64, error) {
	defer observe("eth_blockNumber", time.Now())

	var latestBlock *big.Int
	if err := c.provider.Client.CallCtx(ctx, eth.BlockNumber().Returns(&latestBlock)); err != nil {
		return 0, err
	}

	return latestBlock.Uint64(), nil
}

// GetBlock fetches the header of a block and summarizes it.
func (c *EthRPC) GetBlock(ctx context.Context, height int64) (view.BlockSummary, error) {
	if height < 0 {
		return view.BlockSummary{}, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}
	defer observe("eth_getBlockByNumber", time.Now())

	var header *types.Header
	if err := c.provider.Client.CallCtx(ctx, eth.HeaderByNumber(big.NewInt(height)).Returns(&header)); err != nil {
		if isNotFound(err) {
			return view.BlockSummary{}, fmt.Errorf("block %d: %w", height, ErrNotFound)
		}
		return view.BlockSummary{}, err
	}
	if header == nil {
		return view.BlockSummary{}, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}

	return summarizeHeader(header), nil
}

// GetBlockWithTransactions fetches a full block and recovers the sender of
// every transaction.
func (c *EthRPC) GetBlockWithTransactions(ctx context.Context, height int64) (view.BlockDetail, error) {
	if height < 0 {
		return view.BlockDetail{}, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}
	defer observe("eth_getBlockByNumber_full", time.Now())

	var block *types.Block
	if err := c.provider.Client.CallCtx(ctx, eth.BlockByNumber(big.NewInt(height)).Returns(&block)); err != nil {
		if isNotFound(err) {
			return view.BlockDetail{}, fmt.Errorf("block %d: %w", height, ErrNotFound)
		}
		return view.BlockDetail{}, err
	}
	if block == nil {
		return view.BlockDetail{}, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}

	detail := view.BlockDetail{
		BlockSummary: summarizeHeader(block.Header()),
		Transactions: make([]view.TransactionSummary, 0, len(block.Transactions())),
	}
	for _, tx := range block.Transactions() {
		from, err := types.Sender(c.signer, tx)
		if err != nil {
			return view.BlockDetail{}, fmt.Errorf("failed to decode transaction sender for tx %s: %w", tx.Hash().Hex(), err)
		}

		detail.Transactions = append(detail.Transactions, view.TransactionSummary{
			Hash:        tx.Hash().Hex(),
			BlockNumber: block.NumberU64(),
			From:        from.Hex(),
			To:          addressPtr(tx.To()),
			Value:       tx.Value(),
		})
	}

	return detail, nil
}

// GetTransactionReceipt fetches a receipt together with the current head so
// that confirmations can be derived in one round trip.
func (c *EthRPC) GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	if !isHash(hash) {
		return nil, fmt.Errorf("transaction %s: %w", hash, ErrNotFound)
	}
	defer observe("eth_getTransactionReceipt", time.Now())

	var (
		raw  *rpcReceipt
		head hexutil.Uint64
	)
	batch := []rpc.BatchElem{
		{Method: "eth_getTransactionReceipt", Args: []any{common.HexToHash(hash)}, Result: &raw},
		{Method: "eth_blockNumber", Result: &head},
	}
	if err := c.rpcClient.BatchCallContext(ctx, batch); err != nil {
		return nil, err
	}
	for _, elem := range batch {
		if elem.Error != nil {
			return nil, elem.Error
		}
	}

	if raw == nil {
		return nil, nil
	}

	receipt := &Receipt{
		TxHash:            raw.TxHash.Hex(),
		Status:            uint64(raw.Status),
		BlockNumber:       uint64(raw.BlockNumber),
		From:              raw.From.Hex(),
		To:                addressPtr(raw.To),
		EffectiveGasPrice: (*big.Int)(raw.EffectiveGasPrice),
		GasUsed:           uint64(raw.GasUsed),
		Type:              uint8(raw.Type),
		TransactionIndex:  uint(raw.TransactionIndex),
	}
	if uint64(head) >= receipt.BlockNumber {
		receipt.Confirmations = uint64(head) - receipt.BlockNumber + 1
	}

	return receipt, nil
}

// GetTransaction fetches a transaction body. Transactions that are not yet
// included in a block are reported as nil.
func (c *EthRPC) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	if !isHash(hash) {
		return nil, fmt.Errorf("transaction %s: %w", hash, ErrNotFound)
	}
	defer observe("eth_getTransactionByHash", time.Now())

	var raw *rpcTransaction
	if err := c.rpcClient.CallContext(ctx, &raw, "eth_getTransactionByHash", common.HexToHash(hash)); err != nil {
		return nil, err
	}
	if raw == nil || raw.BlockNumber == nil {
		return nil, nil
	}

	return &Transaction{
		Hash:  raw.Hash.Hex(),
		From:  raw.From.Hex(),
		To:    addressPtr(raw.To),
		Value: (*big.Int)(raw.Value),
		Nonce: uint64(raw.Nonce),
	}, nil
}

// GetBalance returns the latest balance of an address in wei.
func (c *EthRPC) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%q: %w", address, ErrInvalidAddress)
	}
	defer observe("eth_getBalance", time.Now())

	var balance *big.Int
	if err := c.provider.Client.CallCtx(ctx, eth.Balance(common.HexToAddress(address), nil).Returns(&balance)); err != nil {
		return nil, err
	}

	return balance, nil
}

// GetNftsForOwner enumerates all NFTs held by an address across every page
// the NFT API returns.
func (c *EthRPC) GetNftsForOwner(ctx context.Context, address string) ([]view.NftSummary, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%q: %w", address, ErrInvalidAddress)
	}
	if c.nfts == nil {
		return nil, errors.New("nft endpoint not configured")
	}
	defer observe("getNFTs", time.Now())

	return c.nfts.ownedNfts(ctx, common.HexToAddress(address).Hex())
}

func summarizeHeader(header *types.Header) view.BlockSummary {
	return view.BlockSummary{
		Height:  header.Number.Uint64(),
		Miner:   header.Coinbase.Hex(),
		GasUsed: header.GasUsed,
	}
}

func addressPtr(addr *common.Address) *string {
	if addr == nil {
		return nil
	}
	hex := addr.Hex()
	return &hex
}

func isHash(s string) bool {
	if len(s) != hashHexLength || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hexutil.Decode(s)
	return err == nil
}

// isNotFound reports whether err signals a null result from the provider.
func isNotFound(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	return strings.Contains(err.Error(), ethereum.NotFound.Error())
}

// observe records the latency of a provider call.
func observe(method string, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`explorer_rpc_duration_seconds{method=%q}`, method)).UpdateDuration(start)
}

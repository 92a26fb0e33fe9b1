package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHash    = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	testAddress = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
)

var checksummed = common.HexToAddress(testAddress).Hex()

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// newRPCServer answers single and batched JSON-RPC requests with canned
// results keyed by method name. Unknown methods answer null.
func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()

	return newRPCServerFunc(t, func(req rpcRequest) string {
		result, ok := results[req.Method]
		if !ok {
			return "null"
		}
		return result
	})
}

// newRPCServerFunc answers single and batched JSON-RPC requests with the
// result of answer.
func newRPCServerFunc(t *testing.T, answer func(rpcRequest) string) *httptest.Server {
	t.Helper()

	respond := func(req rpcRequest) rpcResponse {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(answer(req))}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")

		if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
			var reqs []rpcRequest
			require.NoError(t, json.Unmarshal(body, &reqs))
			resps := make([]rpcResponse, 0, len(reqs))
			for _, req := range reqs {
				resps = append(resps, respond(req))
			}
			_ = json.NewEncoder(w).Encode(resps)
			return
		}

		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		_ = json.NewEncoder(w).Encode(respond(req))
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestEthRPC(t *testing.T, results map[string]string) *EthRPC {
	t.Helper()

	server := newRPCServer(t, results)
	c, err := newEthRPC(EthRPCOpts{RPCEndpoint: server.URL, ChainID: 1})
	require.NoError(t, err)

	return c
}

func TestEthRPC_CurrentHeight(t *testing.T) {
	c := newTestEthRPC(t, map[string]string{
		"eth_blockNumber": `"0x64"`,
	})

	height, err := c.CurrentHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), height)
}

func TestEthRPC_GetBlock_NotFound(t *testing.T) {
	c := newTestEthRPC(t, map[string]string{})

	t.Run("negative height is rejected locally", func(t *testing.T) {
		_, err := c.GetBlock(context.Background(), -1)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = c.GetBlockWithTransactions(context.Background(), -1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("height above head", func(t *testing.T) {
		_, err := c.GetBlock(context.Background(), 1_000_000)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEthRPC_GetTransaction(t *testing.T) {
	mined := `{
		"hash": "` + testHash + `",
		"blockNumber": "0x64",
		"from": "` + testAddress + `",
		"to": null,
		"value": "0xde0b6b3a7640000",
		"nonce": "0x7"
	}`
	pending := `{
		"hash": "` + testHash + `",
		"blockNumber": null,
		"from": "` + testAddress + `",
		"to": "` + testAddress + `",
		"value": "0x1",
		"nonce": "0x8"
	}`

	tests := []struct {
		desc    string
		hash    string
		result  string
		wantNil bool
		wantErr error
	}{
		{desc: "mined transaction", hash: testHash, result: mined},
		{desc: "pending transaction", hash: testHash, result: pending, wantNil: true},
		{desc: "unknown transaction", hash: testHash, result: "null", wantNil: true},
		{desc: "malformed hash", hash: "0xabc", result: mined, wantErr: ErrNotFound},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			c := newTestEthRPC(t, map[string]string{
				"eth_getTransactionByHash": test.result,
			})

			tx, err := c.GetTransaction(context.Background(), test.hash)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)

			if test.wantNil {
				assert.Nil(t, tx)
				return
			}

			require.NotNil(t, tx)
			assert.Equal(t, testHash, tx.Hash)
			assert.Equal(t, checksummed, tx.From)
			assert.Nil(t, tx.To)
			assert.Equal(t, "1000000000000000000", tx.Value.String())
			assert.Equal(t, uint64(7), tx.Nonce)
		})
	}
}

func TestEthRPC_GetTransactionReceipt(t *testing.T) {
	receipt := `{
		"transactionHash": "` + testHash + `",
		"status": "0x1",
		"blockNumber": "0x62",
		"from": "` + testAddress + `",
		"to": "` + testAddress + `",
		"effectiveGasPrice": "0x3b9aca00",
		"gasUsed": "0x5208",
		"type": "0x2",
		"transactionIndex": "0x3"
	}`

	t.Run("mined receipt", func(t *testing.T) {
		c := newTestEthRPC(t, map[string]string{
			"eth_getTransactionReceipt": receipt,
			"eth_blockNumber":           `"0x64"`,
		})

		got, err := c.GetTransactionReceipt(context.Background(), testHash)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, testHash, got.TxHash)
		assert.Equal(t, uint64(1), got.Status)
		assert.Equal(t, uint64(98), got.BlockNumber)
		assert.Equal(t, uint64(3), got.Confirmations)
		assert.Equal(t, big.NewInt(1_000_000_000), got.EffectiveGasPrice)
		assert.Equal(t, uint64(21000), got.GasUsed)
		assert.Equal(t, uint8(2), got.Type)
		assert.Equal(t, uint(3), got.TransactionIndex)
		require.NotNil(t, got.To)
		assert.Equal(t, checksummed, *got.To)
	})

	t.Run("pending receipt", func(t *testing.T) {
		c := newTestEthRPC(t, map[string]string{
			"eth_blockNumber": `"0x64"`,
		})

		got, err := c.GetTransactionReceipt(context.Background(), testHash)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestEthRPC_GetBalance(t *testing.T) {
	c := newTestEthRPC(t, map[string]string{
		"eth_getBalance": `"0xde0b6b3a7640000"`,
	})

	_, err := c.GetBalance(context.Background(), "invalid")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	balance, err := c.GetBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
}

func TestEthRPC_GetNftsForOwner(t *testing.T) {
	c := newTestEthRPC(t, map[string]string{})

	_, err := c.GetNftsForOwner(context.Background(), "invalid")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = c.GetNftsForOwner(context.Background(), testAddress)
	assert.Error(t, err, "nft endpoint is not configured")
}

func TestWithAPIKey(t *testing.T) {
	assert.Equal(t, "https://eth.example/v2", withAPIKey("https://eth.example/v2", ""))
	assert.Equal(t, "https://eth.example/v2/key", withAPIKey("https://eth.example/v2/", "key"))
}

func TestIsHash(t *testing.T) {
	assert.True(t, isHash(testHash))
	assert.False(t, isHash("0xabc"))
	assert.False(t, isHash("5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b2206000"))
	assert.False(t, isHash("0xzz504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"))
}

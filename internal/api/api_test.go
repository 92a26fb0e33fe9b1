package api_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"

	"github.com/joseerobless/blockexplorer/internal/api"
	"github.com/joseerobless/blockexplorer/internal/cache"
	"github.com/joseerobless/blockexplorer/internal/chain"
	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/internal/pool"
	"github.com/joseerobless/blockexplorer/internal/stats"
	"github.com/joseerobless/blockexplorer/pkg/view"
	"github.com/joseerobless/blockexplorer/testing/mocks"
)

func newTestRouter(t *testing.T, c *mocks.Chain) *bunrouter.Router {
	t.Helper()

	workers := pool.New(pool.PoolOpts{Logg: mocks.NoopLogger, WorkerCount: 8})
	t.Cleanup(workers.Stop)

	e := explorer.New(explorer.ExplorerOpts{Chain: c, Pool: workers, Logg: mocks.NoopLogger, WindowSize: 3})
	sessions, _ := cache.New(cache.CacheOpts{Explorer: e, Logg: mocks.NoopLogger})

	return api.New(api.APIOpts{
		Explorer: e,
		Cache:    sessions,
		Feed:     e.NewFeedSession(0),
		Stats:    stats.New(stats.StatsOpts{Cache: sessions, Logg: mocks.NoopLogger, Pool: workers}),
		Logg:     mocks.NoopLogger,
	})
}

func serve(t *testing.T, router http.Handler, req *http.Request) (int, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func get(t *testing.T, router http.Handler, target string) (int, map[string]any) {
	t.Helper()
	return serve(t, router, httptest.NewRequest(http.MethodGet, target, nil))
}

func TestAPI_RecentBlocks(t *testing.T) {
	c := mocks.BaselineChain(t)
	var lookups atomic.Int32
	c.GetBlockFunc = func(_ context.Context, height int64) (view.BlockSummary, error) {
		lookups.Add(1)
		return mocks.GenericBlockSummary(uint64(height)), nil
	}
	router := newTestRouter(t, c)

	status, body := get(t, router, "/")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), body["head"])

	blocks := body["blocks"].([]any)
	require.Len(t, blocks, 3)
	first := blocks[0].(map[string]any)
	assert.Equal(t, float64(100), first["height"])
	assert.Equal(t, "0x95222290...", first["minerShort"])
	assert.Equal(t, "0.0000000000021", first["gasUsedDisplay"])

	// Same head is served from the shared feed.
	_, _ = get(t, router, "/blocks")
	assert.Equal(t, int32(3), lookups.Load())

	status, body = get(t, router, "/blocks?size=5")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["blocks"], 5)

	status, body = get(t, router, "/blocks?size=abc")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}

func TestAPI_RecentBlocks_ConcurrentVisitors(t *testing.T) {
	c := mocks.BaselineChain(t)
	c.GetBlockFunc = func(_ context.Context, height int64) (view.BlockSummary, error) {
		time.Sleep(50 * time.Millisecond)
		return mocks.GenericBlockSummary(uint64(height)), nil
	}
	router := newTestRouter(t, c)

	codes := make(chan int, 2)
	for range 2 {
		go func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes <- rec.Code
		}()
	}

	assert.Equal(t, http.StatusOK, <-codes)
	assert.Equal(t, http.StatusOK, <-codes)
}

func TestAPI_RecentBlocks_MovingHead(t *testing.T) {
	c := mocks.BaselineChain(t)
	var head atomic.Uint64
	head.Store(mocks.GenericHeight)
	c.CurrentHeightFunc = func(context.Context) (uint64, error) {
		return head.Add(1), nil
	}
	c.GetBlockFunc = func(_ context.Context, height int64) (view.BlockSummary, error) {
		time.Sleep(10 * time.Millisecond)
		return mocks.GenericBlockSummary(uint64(height)), nil
	}
	router := newTestRouter(t, c)

	codes := make(chan int, 4)
	for range 4 {
		go func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes <- rec.Code
		}()
	}

	for range 4 {
		assert.Equal(t, http.StatusOK, <-codes)
	}
}

func TestAPI_BlockSession(t *testing.T) {
	c := mocks.BaselineChain(t)
	var lookups atomic.Int32
	c.GetBlockWithTransactionsFunc = func(_ context.Context, height int64) (view.BlockDetail, error) {
		lookups.Add(1)
		return mocks.GenericBlockDetail(uint64(height)), nil
	}
	router := newTestRouter(t, c)

	for i := 0; i < 2; i++ {
		status, _ := get(t, router, "/block/7?session=s1")
		require.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, int32(1), lookups.Load())

	_, _ = get(t, router, "/block/8?session=s1")
	assert.Equal(t, int32(2), lookups.Load())
}

func TestAPI_Block(t *testing.T) {
	router := newTestRouter(t, mocks.BaselineChain(t))

	status, body := get(t, router, "/block/42")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(42), body["height"])

	txs := body["transactions"].([]any)
	require.Len(t, txs, 3)
	assert.Equal(t, "0x03", txs[0].(map[string]any)["hash"])
	assert.Nil(t, txs[2].(map[string]any)["to"])

	tests := []struct {
		desc   string
		target string
		status int
		kind   string
	}{
		{desc: "above head", target: "/block/101", status: http.StatusNotFound, kind: "not_found"},
		{desc: "negative", target: "/block/-1", status: http.StatusNotFound, kind: "not_found"},
		{desc: "not a number", target: "/block/abc", status: http.StatusBadRequest},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			status, body := get(t, router, test.target)
			assert.Equal(t, test.status, status)
			if test.kind != "" {
				assert.Equal(t, test.kind, body["kind"])
			}
		})
	}
}

func TestAPI_Transaction(t *testing.T) {
	c := mocks.BaselineChain(t)
	var lookups atomic.Int32
	var pending atomic.Bool
	pending.Store(true)
	c.GetTransactionReceiptFunc = func(context.Context, string) (*chain.Receipt, error) {
		lookups.Add(1)
		if pending.Load() {
			return nil, nil
		}
		return mocks.GenericReceipt(), nil
	}
	router := newTestRouter(t, c)

	target := "/transaction/" + mocks.GenericHash + "?session=s1"

	status, body := get(t, router, target)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["pending"])

	pending.Store(false)

	// Served from the session until refreshed.
	status, _ = get(t, router, target)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, int32(1), lookups.Load())

	status, body = get(t, router, target+"&refresh=1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["status"])
	assert.Equal(t, "1", body["valueDisplay"])
	assert.Equal(t, "1", body["gasPriceDisplay"])
	assert.Equal(t, float64(3), body["confirmations"])
	assert.Equal(t, int32(2), lookups.Load())

	status, _ = get(t, router, "/transaction/"+mocks.GenericHash)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(3), lookups.Load())
}

func TestAPI_TransactionErrors(t *testing.T) {
	c := mocks.BaselineChain(t)
	c.GetTransactionFunc = func(context.Context, string) (*chain.Transaction, error) {
		return nil, mocks.GenericError
	}
	router := newTestRouter(t, c)

	status, body := get(t, router, "/transaction/"+mocks.GenericHash)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "transport", body["kind"])
}

func TestAPI_Account(t *testing.T) {
	router := newTestRouter(t, mocks.BaselineChain(t))

	status, body := get(t, router, "/accounts/"+mocks.GenericAddress)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, mocks.GenericAddress, body["address"])
	assert.Equal(t, "1", body["balanceDisplay"])
	assert.Len(t, body["nfts"], 2)
	assert.NotContains(t, body, "errors")
}

func TestAPI_AccountName(t *testing.T) {
	router := newTestRouter(t, mocks.BaselineChain(t))

	status, body := get(t, router, "/accounts/"+mocks.GenericName)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, mocks.GenericName, body["address"])
	assert.Equal(t, mocks.GenericAddress, body["resolvedAddress"])
	assert.Equal(t, "1", body["balanceDisplay"])

	status, body = get(t, router, "/accounts/nobody.eth?session=s1")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "nobody.eth", body["address"])
	assert.NotContains(t, body, "resolvedAddress")
	assert.Nil(t, body["balance"])
	assert.Nil(t, body["nfts"])
	assert.Equal(t, map[string]any{"name": "invalid_address"}, body["errors"])
}

func TestAPI_AccountPartialFailure(t *testing.T) {
	c := mocks.BaselineChain(t)
	c.GetNftsForOwnerFunc = func(context.Context, string) ([]view.NftSummary, error) {
		return nil, mocks.GenericError
	}
	router := newTestRouter(t, c)

	status, body := get(t, router, "/accounts/"+mocks.GenericAddress+"?session=s1")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["nfts"])
	assert.Equal(t, "1", body["balanceDisplay"])
	assert.Equal(t, map[string]any{"nfts": "transport"}, body["errors"])
}

func TestAPI_AccountInvalidAddress(t *testing.T) {
	c := mocks.BaselineChain(t)
	c.GetBalanceFunc = func(context.Context, string) (*big.Int, error) {
		return nil, chain.ErrInvalidAddress
	}
	c.GetNftsForOwnerFunc = func(context.Context, string) ([]view.NftSummary, error) {
		return nil, chain.ErrInvalidAddress
	}
	router := newTestRouter(t, c)

	status, body := get(t, router, "/accounts/invalid")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Nil(t, body["balance"])
	assert.Nil(t, body["nfts"])
	assert.Equal(t, map[string]any{"balance": "invalid_address", "nfts": "invalid_address"}, body["errors"])
}

func TestAPI_SubmitAccount(t *testing.T) {
	router := newTestRouter(t, mocks.BaselineChain(t))

	req := httptest.NewRequest(http.MethodPost, "/accounts",
		strings.NewReader(`{"address":" `+mocks.GenericAddress+` ","session":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	status, body := serve(t, router, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, mocks.GenericAddress, body["address"])

	form := url.Values{"address": {mocks.GenericAddress}}
	req = httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, _ = serve(t, router, req)
	assert.Equal(t, http.StatusOK, status)

	req = httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(`{"address":""}`))
	req.Header.Set("Content-Type", "application/json")
	status, body = serve(t, router, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "address is required", body["error"])
}

func TestAPI_ServiceEndpoints(t *testing.T) {
	router := newTestRouter(t, mocks.BaselineChain(t))

	status, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	_, _ = get(t, router, "/accounts/"+mocks.GenericAddress+"?session=s1")

	status, body = get(t, router, "/stats")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["sessions"])
	assert.Contains(t, body, "poolActiveWorkers")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "explorer_resolutions_total")
}

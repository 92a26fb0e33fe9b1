package explorer

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/joseerobless/blockexplorer/internal/chain"
	"github.com/joseerobless/blockexplorer/pkg/view"
)

// ResolveAccount fetches the balance and the NFT holdings of address
// concurrently. The two lookups are independent: a failing one never cancels
// the other, and each field of the returned view is left absent when its own
// lookup fails. Failures are joined into the returned error, which always
// comes together with the (possibly partial) view.
//
// An ENS name is resolved to its address once, before both lookups. A name
// that does not resolve leaves both fields absent.
func (e *Explorer) ResolveAccount(ctx context.Context, address string) (view.AccountView, error) {
	defer track(opAccount, time.Now())

	account := view.AccountView{Address: address}
	target := address
	if chain.IsName(address) {
		resolved, err := e.chain.ResolveName(ctx, address)
		if err != nil {
			e.logg.Debug("name resolution failed", "name", address, "error", err)
			return account, resolutionError(opName, err)
		}
		account.ResolvedAddress = resolved
		target = resolved
	}

	var (
		balance    *big.Int
		nfts       []view.NftSummary
		balanceErr error
		nftsErr    error
	)

	balanceTask := e.pool.Go(func() {
		balance, balanceErr = e.chain.GetBalance(ctx, target)
	})
	nftsTask := e.pool.Go(func() {
		nfts, nftsErr = e.chain.GetNftsForOwner(ctx, target)
	})
	// A task that panics reports it through Wait only.
	if err := balanceTask.Wait(); err != nil && balanceErr == nil {
		balanceErr = err
	}
	if err := nftsTask.Wait(); err != nil && nftsErr == nil {
		nftsErr = err
	}

	if balanceErr == nil {
		account.Balance = balance
	}
	if nftsErr == nil {
		account = account.WithNfts(nfts)
	}

	err := errors.Join(
		resolutionError(opBalance, balanceErr),
		resolutionError(opNfts, nftsErr),
	)
	if err != nil {
		e.logg.Warn("account partially resolved",
			"address", address,
			"has_balance", account.HasBalance(),
			"has_nfts", account.HasNfts(),
			"error", err,
		)
	}

	return account, err
}

// Package view provides the display-ready records assembled by the explorer
// resolvers and served to clients.
package view

import (
	"encoding/json"
	"math/big"
)

const (
	// UntitledNft is the title shown for NFTs without metadata title.
	UntitledNft = "Untitled"
	// FallbackThumbnailURL is shown for NFTs without any media thumbnail.
	FallbackThumbnailURL = "https://static.thenounproject.com/png/3918097-200.png"
)

type (
	// BlockSummary is a single entry of the recent blocks feed.
	BlockSummary struct {
		Height  uint64 `json:"height"`
		Miner   string `json:"miner"`
		GasUsed uint64 `json:"gasUsed"`
	}

	// BlockDetail is a block with its transactions in inclusion order.
	BlockDetail struct {
		BlockSummary
		Transactions []TransactionSummary `json:"transactions"`
	}

	// TransactionSummary is a transaction row inside a block detail view.
	TransactionSummary struct {
		Hash        string   `json:"hash"`
		BlockNumber uint64   `json:"blockNumber"`
		From        string   `json:"from"`
		To          *string  `json:"to"` // nil for contract creations
		Value       *big.Int `json:"value"`
	}

	// TransactionReceipt merges a receipt with the value and nonce of its transaction.
	TransactionReceipt struct {
		Hash              string   `json:"hash"`
		Status            bool     `json:"status"`
		BlockNumber       uint64   `json:"blockNumber"`
		From              string   `json:"from"`
		To                *string  `json:"to"`
		Confirmations     uint64   `json:"confirmations"`
		EffectiveGasPrice *big.Int `json:"effectiveGasPrice"`
		GasUsed           uint64   `json:"gasUsed"`
		Type              uint8    `json:"type"`
		TransactionIndex  uint     `json:"transactionIndex"`
		Value             *big.Int `json:"value"`
		Nonce             uint64   `json:"nonce"`
	}

	// NftSummary is a display-ready NFT holding.
	NftSummary struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnailUrl"`
	}

	// AccountView is the accounts page model. A nil Balance or a nil Nfts
	// means the field was not fetched or its lookup failed; it is never
	// coerced to zero or to an empty list. ResolvedAddress is set when
	// Address is an ENS name.
	AccountView struct {
		Address         string        `json:"address"`
		ResolvedAddress string        `json:"resolvedAddress,omitempty"`
		Balance         *big.Int      `json:"balance"`
		Nfts            *[]NftSummary `json:"nfts"`
	}
)

// NewNftSummary derives the display fields of an NFT. The first non-empty
// thumbnail wins.
func NewNftSummary(title string, thumbnails ...string) NftSummary {
	nft := NftSummary{
		Title:        title,
		ThumbnailURL: FallbackThumbnailURL,
	}
	if nft.Title == "" {
		nft.Title = UntitledNft
	}

	for _, thumb := range thumbnails {
		if thumb != "" {
			nft.ThumbnailURL = thumb
			break
		}
	}

	return nft
}

// HasBalance reports whether the balance was resolved.
func (a AccountView) HasBalance() bool {
	return a.Balance != nil
}

// HasNfts reports whether the NFT holdings were resolved. A resolved but
// empty list still counts.
func (a AccountView) HasNfts() bool {
	return a.Nfts != nil
}

// WithNfts returns a copy of the view holding the given NFTs.
func (a AccountView) WithNfts(nfts []NftSummary) AccountView {
	if nfts == nil {
		nfts = []NftSummary{}
	}
	a.Nfts = &nfts
	return a
}

// Serialize converts the account view to JSON bytes.
func (a AccountView) Serialize() ([]byte, error) {
	return json.Marshal(a)
}

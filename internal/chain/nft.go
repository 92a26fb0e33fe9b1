package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseerobless/blockexplorer/pkg/view"
)

const (
	// defaultNftClientTimeout bounds a single NFT API page request.
	defaultNftClientTimeout = 15 * time.Second
	// ownedNftsPath is the owner enumeration method of the NFT API
	ownedNftsPath = "getNFTs"
	// maxNftPages caps pagination for owners with very large holdings
	maxNftPages = 50
	// maxErrorBodySize limits how much of an error response ends up in logs
	maxErrorBodySize = 512
)

type (
	nftAPI struct {
		endpoint string
		client   *http.Client
	}

	ownedNftsResponse struct {
		OwnedNfts []ownedNft `json:"ownedNfts"`
		PageKey   string     `json:"pageKey"`
	}

	ownedNft struct {
		Title string     `json:"title"`
		Media []nftMedia `json:"media"`
	}

	nftMedia struct {
		Thumbnail string `json:"thumbnail"`
	}
)

func newNftAPI(endpoint string) *nftAPI {
	return &nftAPI{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: defaultNftClientTimeout,
		},
	}
}

// ownedNfts follows pageKey until the API stops returning one.
func (a *nftAPI) ownedNfts(ctx context.Context, owner string) ([]view.NftSummary, error) {
	nfts := []view.NftSummary{}
	pageKey := ""

	for page := 0; page < maxNftPages; page++ {
		resp, err := a.fetchPage(ctx, owner, pageKey)
		if err != nil {
			return nil, err
		}

		for _, nft := range resp.OwnedNfts {
			thumbnails := make([]string, 0, len(nft.Media))
			for _, media := range nft.Media {
				thumbnails = append(thumbnails, media.Thumbnail)
			}
			nfts = append(nfts, view.NewNftSummary(nft.Title, thumbnails...))
		}

		if resp.PageKey == "" {
			return nfts, nil
		}
		pageKey = resp.PageKey
	}

	return nfts, nil
}

func (a *nftAPI) fetchPage(ctx context.Context, owner string, pageKey string) (*ownedNftsResponse, error) {
	query := url.Values{}
	query.Set("owner", owner)
	query.Set("withMetadata", "true")
	if pageKey != "" {
		query.Set("pageKey", pageKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/"+ownedNftsPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		if res.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("nft api rejected owner %s: %s: %w", owner, strings.TrimSpace(string(body)), ErrInvalidAddress)
		}
		return nil, fmt.Errorf("nft api returned status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var page ownedNftsResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode nft api response: %w", err)
	}

	return &page, nil
}

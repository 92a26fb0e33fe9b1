package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseerobless/blockexplorer/pkg/view"
)

func TestNftAPI_OwnedNfts(t *testing.T) {
	pages := map[string]string{
		"": `{
			"ownedNfts": [
				{"title": "Punk #1", "media": [{"thumbnail": "https://img/1.png"}]},
				{"title": "", "media": []}
			],
			"pageKey": "next"
		}`,
		"next": `{
			"ownedNfts": [
				{"title": "Ape", "media": [{"thumbnail": ""}, {"thumbnail": "https://img/2.png"}]}
			]
		}`,
	}

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/key/getNFTs", r.URL.Path)
		assert.Equal(t, checksummed, r.URL.Query().Get("owner"))

		page, ok := pages[r.URL.Query().Get("pageKey")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	api := newNftAPI(withAPIKey(server.URL, "key"))

	got, err := api.ownedNfts(context.Background(), checksummed)
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	assert.Equal(t, []view.NftSummary{
		{Title: "Punk #1", ThumbnailURL: "https://img/1.png"},
		{Title: view.UntitledNft, ThumbnailURL: view.FallbackThumbnailURL},
		{Title: "Ape", ThumbnailURL: "https://img/2.png"},
	}, got)
}

func TestNftAPI_OwnedNfts_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ownedNfts": [], "totalCount": 0}`))
	}))
	defer server.Close()

	got, err := newNftAPI(server.URL).ownedNfts(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNftAPI_OwnedNfts_Errors(t *testing.T) {
	tests := []struct {
		desc    string
		status  int
		wantErr error
	}{
		{desc: "rejected owner", status: http.StatusBadRequest, wantErr: ErrInvalidAddress},
		{desc: "provider failure", status: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			}))
			defer server.Close()

			_, err := newNftAPI(server.URL).ownedNfts(context.Background(), testAddress)
			require.Error(t, err)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				assert.NotErrorIs(t, err, ErrInvalidAddress)
			}
		})
	}
}

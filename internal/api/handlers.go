package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/pkg/view"
	"github.com/uptrace/bunrouter"
)

const (
	// sessionParam names the query parameter carrying the client session ID
	sessionParam = "session"
	// refreshParam forces a transaction view to go back to the provider
	refreshParam = "refresh"
	// maxWindowSize caps the size query parameter of the blocks feed
	maxWindowSize = 100
)

// accountRequest is the body of POST /accounts.
type accountRequest struct {
	Address string `json:"address"`
	Session string `json:"session"`
}

// recentBlocks serves the recent blocks window below the current head. The
// configured window is served from the shared feed, other sizes are fetched
// on demand.
func (h *handlers) recentBlocks(w http.ResponseWriter, req bunrouter.Request) error {
	ctx := req.Context()

	size := h.explorer.WindowSize()
	if raw := req.URL.Query().Get("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxWindowSize {
			return badRequest("size must be between 1 and %d", maxWindowSize)
		}
		size = v
	}

	if size != h.explorer.WindowSize() {
		feed, err := h.explorer.Feed(ctx, size)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, newFeedResponse(feed))
	}

	head, err := h.explorer.CurrentHeight(ctx)
	if err != nil {
		return err
	}
	feed, err := h.feed.Advance(ctx, head)
	if errors.Is(err, explorer.ErrSuperseded) {
		// The head kept moving; serve the newest window settled so far.
		if current, ok := h.feed.Current(); ok {
			feed, err = current, nil
		}
	}
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, newFeedResponse(feed))
}

func (h *handlers) block(w http.ResponseWriter, req bunrouter.Request) error {
	height, err := strconv.ParseInt(req.Param("height"), 10, 64)
	if err != nil {
		return badRequest("invalid block height %q", req.Param("height"))
	}

	var detail *view.BlockDetail
	if id := req.URL.Query().Get(sessionParam); id != "" {
		detail, err = h.cache.Block(id).Show(req.Context(), height)
	} else {
		detail, err = h.explorer.ResolveBlock(req.Context(), height)
	}
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, newBlockDetailResponse(detail))
}

// transaction serves a receipt, or 202 while the transaction is pending.
// Within a session the view only goes back to the provider when the hash
// changes or refresh is set.
func (h *handlers) transaction(w http.ResponseWriter, req bunrouter.Request) error {
	ctx := req.Context()
	hash := req.Param("hash")
	query := req.URL.Query()

	var (
		receipt *view.TransactionReceipt
		err     error
	)
	if id := query.Get(sessionParam); id != "" {
		session := h.cache.Receipt(id)
		if query.Get(refreshParam) != "" {
			receipt, err = session.Reload(ctx, hash)
		} else {
			receipt, err = session.Show(ctx, hash)
		}
	} else {
		receipt, err = h.explorer.ResolveReceipt(ctx, hash)
	}
	if err != nil {
		return err
	}

	if receipt == nil {
		return writeJSON(w, http.StatusAccepted, pendingResponse{Hash: hash, Pending: true})
	}

	return writeJSON(w, http.StatusOK, newReceiptResponse(receipt))
}

func (h *handlers) account(w http.ResponseWriter, req bunrouter.Request) error {
	return h.resolveAccount(w, req, req.Param("address"), req.URL.Query().Get(sessionParam))
}

// submitAccount accepts the address as JSON or as a form field.
func (h *handlers) submitAccount(w http.ResponseWriter, req bunrouter.Request) error {
	var body accountRequest

	if strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequest("invalid request body: %v", err)
		}
	} else {
		if err := req.ParseForm(); err != nil {
			return badRequest("invalid form: %v", err)
		}
		body.Address = req.PostForm.Get("address")
		body.Session = req.PostForm.Get(sessionParam)
	}
	if body.Session == "" {
		body.Session = req.URL.Query().Get(sessionParam)
	}

	return h.resolveAccount(w, req, body.Address, body.Session)
}

// resolveAccount answers with whatever fields resolved and the reason for
// the others. Only an address rejected by every lookup is a 400.
func (h *handlers) resolveAccount(w http.ResponseWriter, req bunrouter.Request, address string, sessionID string) error {
	ctx := req.Context()

	address = strings.TrimSpace(address)
	if address == "" {
		return badRequest("address is required")
	}

	var (
		account view.AccountView
		err     error
	)
	if sessionID != "" {
		account, err = h.cache.Account(sessionID).SubmitAddress(ctx, address)
	} else {
		account, err = h.explorer.ResolveAccount(ctx, address)
	}
	if errors.Is(err, explorer.ErrSuperseded) {
		return err
	}

	status := http.StatusOK
	if err != nil && !account.HasBalance() && !account.HasNfts() {
		status = statusOf(err)
	}

	return writeJSON(w, status, newAccountResponse(account, err))
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/pkg/format"
	"github.com/joseerobless/blockexplorer/pkg/view"
	"github.com/uptrace/bunrouter"
)

const (
	// shortHashLength is how many characters of a hash or address are shown in lists
	shortHashLength = 10
	// gweiDecimals converts wei to gwei
	gweiDecimals = 9
)

type (
	// requestError is a malformed request, answered with 400.
	requestError struct {
		msg string
	}

	errorResponse struct {
		Error string `json:"error"`
		Kind  string `json:"kind,omitempty"`
	}

	blockResponse struct {
		view.BlockSummary
		MinerShort     string `json:"minerShort"`
		GasUsedDisplay string `json:"gasUsedDisplay"`
	}

	feedResponse struct {
		Head   uint64          `json:"head"`
		Blocks []blockResponse `json:"blocks"`
	}

	transactionRow struct {
		view.TransactionSummary
		HashShort    string `json:"hashShort"`
		ValueDisplay string `json:"valueDisplay"`
	}

	blockDetailResponse struct {
		blockResponse
		Transactions []transactionRow `json:"transactions"`
	}

	receiptResponse struct {
		*view.TransactionReceipt
		ValueDisplay    string `json:"valueDisplay"`
		GasPriceDisplay string `json:"gasPriceDisplay"`
		GasUsedDisplay  string `json:"gasUsedDisplay"`
	}

	pendingResponse struct {
		Hash    string `json:"hash"`
		Pending bool   `json:"pending"`
	}

	accountResponse struct {
		view.AccountView
		BalanceDisplay *string           `json:"balanceDisplay"`
		Errors         map[string]string `json:"errors,omitempty"`
	}
)

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// errorHandler maps handler errors to HTTP responses.
func errorHandler(logg *slog.Logger) bunrouter.MiddlewareFunc {
	return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			err := next(w, req)
			if err == nil {
				return nil
			}

			status := statusOf(err)
			if status >= http.StatusInternalServerError {
				logg.Error("request failed", "path", req.URL.Path, "status", status, "error", err)
			} else {
				logg.Debug("request rejected", "path", req.URL.Path, "status", status, "error", err)
			}

			resp := errorResponse{Error: err.Error()}
			if kind := explorer.KindOf(err); kind != 0 {
				resp.Kind = kind.String()
			}
			return writeJSON(w, status, resp)
		}
	}
}

func statusOf(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		// Client went away.
		return 499
	}

	switch explorer.KindOf(err) {
	case explorer.KindNotFound:
		return http.StatusNotFound
	case explorer.KindInvalidAddress:
		return http.StatusBadRequest
	case explorer.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func newBlockResponse(block view.BlockSummary) blockResponse {
	return blockResponse{
		BlockSummary:   block,
		MinerShort:     format.ShortHash(block.Miner, shortHashLength),
		GasUsedDisplay: format.FormatGas(block.GasUsed),
	}
}

func newFeedResponse(feed view.Feed) feedResponse {
	blocks := make([]blockResponse, 0, len(feed.Blocks))
	for _, block := range feed.Blocks {
		blocks = append(blocks, newBlockResponse(block))
	}
	return feedResponse{Head: feed.Head, Blocks: blocks}
}

func newBlockDetailResponse(detail *view.BlockDetail) blockDetailResponse {
	rows := make([]transactionRow, 0, len(detail.Transactions))
	for _, tx := range detail.Transactions {
		rows = append(rows, transactionRow{
			TransactionSummary: tx,
			HashShort:          format.ShortHash(tx.Hash, shortHashLength),
			ValueDisplay:       format.FormatEther(tx.Value),
		})
	}
	return blockDetailResponse{
		blockResponse: newBlockResponse(detail.BlockSummary),
		Transactions:  rows,
	}
}

func newReceiptResponse(receipt *view.TransactionReceipt) receiptResponse {
	return receiptResponse{
		TransactionReceipt: receipt,
		ValueDisplay:       format.FormatEther(receipt.Value),
		GasPriceDisplay:    format.FormatUnits(receipt.EffectiveGasPrice, gweiDecimals),
		GasUsedDisplay:     format.FormatGas(receipt.GasUsed),
	}
}

// newAccountResponse renders the fields that resolved and lists, per field,
// why the others did not.
func newAccountResponse(account view.AccountView, err error) accountResponse {
	resp := accountResponse{AccountView: account}
	if account.HasBalance() {
		balance := format.FormatEther(account.Balance)
		resp.BalanceDisplay = &balance
	}
	if err == nil {
		return resp
	}

	resp.Errors = make(map[string]string)
	for _, fieldErr := range unjoin(err) {
		var resErr *explorer.ResolutionError
		if errors.As(fieldErr, &resErr) {
			resp.Errors[resErr.Op] = resErr.Kind.String()
		}
	}
	return resp
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

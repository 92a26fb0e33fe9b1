// Package format provides pure display helpers for base-unit amounts and
// long identifiers.
package format

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// etherDecimals is the number of decimals between wei and ether
	etherDecimals = 18
	// ellipsis is appended to truncated identifiers
	ellipsis = "..."
	// MinShortLength is the smallest prefix ShortHash keeps
	MinShortLength = 6
)

// FormatEther converts a wei amount to a decimal ether string. A nil amount
// renders as an empty string.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, etherDecimals)
}

// FormatUnits converts a base-unit amount to a decimal string with the given
// number of decimals, trimming trailing zeros.
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return ""
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FormatGas converts a gas quantity to a decimal ether string.
func FormatGas(gas uint64) string {
	return FormatEther(new(big.Int).SetUint64(gas))
}

// ShortHash keeps the first keep characters of s and appends an ellipsis.
// keep is raised to MinShortLength; strings that already fit are returned
// unchanged.
func ShortHash(s string, keep int) string {
	if keep < MinShortLength {
		keep = MinShortLength
	}
	if len(s) <= keep+len(ellipsis) {
		return s
	}
	return s[:keep] + ellipsis
}

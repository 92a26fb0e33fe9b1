package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
)

var (
	// ensRegistry is the ENS registry deployed on mainnet and its public testnets.
	ensRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

	funcResolver = w3.MustNewFunc("resolver(bytes32)", "address")
	funcAddr     = w3.MustNewFunc("addr(bytes32)", "address")
)

// IsName reports whether input looks like an ENS name rather than a hex address.
func IsName(input string) bool {
	return !common.IsHexAddress(input) && strings.Contains(input, ".") &&
		!strings.HasPrefix(input, ".") && !strings.HasSuffix(input, ".")
}

// ResolveName resolves an ENS name to the address its resolver points at.
// Names without a resolver or an address map to ErrInvalidAddress.
func (c *EthRPC) ResolveName(ctx context.Context, name string) (string, error) {
	if !IsName(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidAddress)
	}
	defer observe("ens_resolve", time.Now())

	node := namehash(name)

	var resolver common.Address
	if err := c.provider.Client.CallCtx(ctx, eth.CallFunc(ensRegistry, funcResolver, node).Returns(&resolver)); err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", fmt.Errorf("%q has no resolver: %w", name, ErrInvalidAddress)
	}

	var addr common.Address
	if err := c.provider.Client.CallCtx(ctx, eth.CallFunc(resolver, funcAddr, node).Returns(&addr)); err != nil {
		return "", err
	}
	if addr == (common.Address{}) {
		return "", fmt.Errorf("%q has no address: %w", name, ErrInvalidAddress)
	}

	return addr.Hex(), nil
}

// namehash computes the EIP-137 node of name.
func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}

	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node[:], label[:])
	}

	return node
}

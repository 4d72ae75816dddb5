package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
)

var ErrNameNotFound = errors.New("name does not resolve to an account")

// defaultENSRegistry is the canonical ENS registry address, identical
// across mainnet and the public testnets.
const defaultENSRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

var (
	// resolver(bytes32) and addr(bytes32) selectors
	selResolver = []byte{0x01, 0x78, 0xb8, 0xbf}
	selAddr     = []byte{0x3b, 0x3b, 0x57, 0xde}
)

// ENSResolver resolves names through the on-chain ENS registry:
// namehash, then resolver(node), then addr(node).
type ENSResolver struct {
	client   *ethclient.Client
	registry common.Address
}

// NewENSResolver dials the RPC endpoint. An empty registry address
// selects the canonical ENS registry.
func NewENSResolver(rpcURL, registryAddr string) (*ENSResolver, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if registryAddr == "" {
		registryAddr = defaultENSRegistry
	}
	if !common.IsHexAddress(registryAddr) {
		return nil, fmt.Errorf("malformed registry address %q", registryAddr)
	}
	return &ENSResolver{client: client, registry: common.HexToAddress(registryAddr)}, nil
}

// ResolveName maps a provider name to its account. Returns
// ErrNameNotFound when no resolver is set or the resolver returns the
// zero address.
func (e *ENSResolver) ResolveName(ctx context.Context, name string) (common.Address, error) {
	node := Namehash(name)

	resolverAddr, err := e.call(ctx, e.registry, selResolver, node)
	if err != nil {
		metrics.RegistryCalls.WithLabelValues("ens", "error").Inc()
		return common.Address{}, fmt.Errorf("resolver lookup for %q: %w", name, err)
	}
	if resolverAddr == (common.Address{}) {
		metrics.RegistryCalls.WithLabelValues("ens", "miss").Inc()
		return common.Address{}, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}

	account, err := e.call(ctx, resolverAddr, selAddr, node)
	if err != nil {
		metrics.RegistryCalls.WithLabelValues("ens", "error").Inc()
		return common.Address{}, fmt.Errorf("addr lookup for %q: %w", name, err)
	}
	if account == (common.Address{}) {
		metrics.RegistryCalls.WithLabelValues("ens", "miss").Inc()
		return common.Address{}, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}

	metrics.RegistryCalls.WithLabelValues("ens", "ok").Inc()
	return account, nil
}

// call performs a packed eth_call selector(bytes32) returning an
// address from the last 20 bytes of the result word.
func (e *ENSResolver) call(ctx context.Context, to common.Address, selector []byte, node common.Hash) (common.Address, error) {
	data := make([]byte, 0, 36)
	data = append(data, selector...)
	data = append(data, node.Bytes()...)

	out, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) < 32 {
		return common.Address{}, fmt.Errorf("short call result (%d bytes)", len(out))
	}
	return common.BytesToAddress(out[12:32]), nil
}

// Namehash implements the recursive ENS name hashing algorithm.
func Namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = common.BytesToHash(crypto.Keccak256(node.Bytes(), labelHash))
	}
	return node
}

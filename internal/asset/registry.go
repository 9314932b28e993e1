package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type symbolKey struct {
	chain  uint64
	symbol string
}

// Registry indexes assets by ID and by (chain, symbol). It is safe for
// concurrent use; tokens discovered on chain are added with Upsert.
type Registry struct {
	mu       sync.RWMutex
	byID     map[ID]*Asset
	bySymbol map[symbolKey]ID
}

// NewRegistry returns a registry holding assets. Later duplicates replace
// earlier ones.
func NewRegistry(assets ...*Asset) *Registry {
	r := &Registry{
		byID:     make(map[ID]*Asset, len(assets)),
		bySymbol: make(map[symbolKey]ID, len(assets)),
	}
	for _, a := range assets {
		r.Upsert(a)
	}
	return r
}

// DefaultRegistry holds the Base sweep targets.
func DefaultRegistry() *Registry {
	return NewRegistry(ETH, USDC, WETH, PRO)
}

func keyOf(chain uint64, symbol string) symbolKey {
	return symbolKey{chain: chain, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

// Upsert stores a, dropping the symbol the same ID had before. The first
// asset to claim a symbol keeps it.
func (r *Registry) Upsert(a *Asset) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[a.id]; ok {
		k := keyOf(a.id.Chain, old.symbol)
		if r.bySymbol[k] == a.id {
			delete(r.bySymbol, k)
		}
	}
	r.byID[a.id] = a
	if k := keyOf(a.id.Chain, a.symbol); k.symbol != "???" {
		if _, taken := r.bySymbol[k]; !taken {
			r.bySymbol[k] = a.id
		}
	}
}

// Get looks an asset up by ID.
func (r *Registry) Get(id ID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// GetToken looks a contract up on chain.
func (r *Registry) GetToken(chain uint64, addr common.Address) (*Asset, bool) {
	return r.Get(TokenID(chain, addr))
}

// BySymbol matches symbol case-insensitively on chain.
func (r *Registry) BySymbol(chain uint64, symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySymbol[keyOf(chain, symbol)]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// Resolve turns a hex address or a known symbol into an address on chain.
// The native coin resolves to EtherPlaceholder.
func (r *Registry) Resolve(chain uint64, ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	a, ok := r.BySymbol(chain, ref)
	if !ok {
		return common.Address{}, fmt.Errorf("asset: unknown token %q on chain %d", ref, chain)
	}
	if a.IsNative() {
		return EtherPlaceholder, nil
	}
	return a.Address(), nil
}

// Len is the number of assets held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

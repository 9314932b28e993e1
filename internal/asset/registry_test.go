package asset_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/internal/asset"
)

func TestRegistry_Resolve(t *testing.T) {
	r := asset.DefaultRegistry()

	tests := []struct {
		ref  string
		want common.Address
	}{
		{"USDC", asset.AddrUSDCBase},
		{" usdc ", asset.AddrUSDCBase},
		{"PRO", asset.AddrPROBase},
		{"ETH", asset.EtherPlaceholder},
		{asset.AddrWETHBase.Hex(), asset.AddrWETHBase},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := r.Resolve(asset.ChainIDBase, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.Resolve(asset.ChainIDBase, "NOPE")
	assert.Error(t, err)
	_, err = r.Resolve(asset.ChainIDEthereum, "USDC")
	assert.Error(t, err, "symbols are per chain")
}

func TestRegistry_UpsertReplacesSymbol(t *testing.T) {
	r := asset.DefaultRegistry()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	r.Upsert(asset.NewToken(asset.ChainIDBase, addr, "FOO", 9))
	r.Upsert(asset.NewToken(asset.ChainIDBase, addr, "BAR", 9))

	_, ok := r.BySymbol(asset.ChainIDBase, "FOO")
	assert.False(t, ok, "old symbol is dropped")

	a, ok := r.GetToken(asset.ChainIDBase, addr)
	require.True(t, ok)
	assert.Equal(t, "BAR", a.Symbol())
	assert.Equal(t, 5, r.Len())
}

func TestRegistry_SymbolCollisionKeepsFirst(t *testing.T) {
	r := asset.DefaultRegistry()
	fake := asset.NewToken(asset.ChainIDBase, common.HexToAddress("0x2222222222222222222222222222222222222222"), "USDC", 6)
	r.Upsert(fake)

	got, err := r.Resolve(asset.ChainIDBase, "USDC")
	require.NoError(t, err)
	assert.Equal(t, asset.AddrUSDCBase, got)

	a, ok := r.GetToken(asset.ChainIDBase, fake.Address())
	require.True(t, ok)
	assert.Equal(t, "USDC", a.Symbol())
}

func TestNewToken_EmptySymbol(t *testing.T) {
	a := asset.NewToken(asset.ChainIDBase, common.HexToAddress("0x3333333333333333333333333333333333333333"), "", 0)
	assert.Equal(t, "???", a.Symbol())
	assert.Equal(t, "???", a.Name())
	assert.Panics(t, func() { asset.NewToken(asset.ChainIDBase, common.Address{1}, "X", 78) })
}

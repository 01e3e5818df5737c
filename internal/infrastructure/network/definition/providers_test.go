package networkdefinition

import (
	"testing"

	"fundchain/internal/infrastructure/configloader"
	"fundchain/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderResolvesBuiltIn(t *testing.T) {
	p, err := NewNetworkDefinitionProvider(logger.NewNop(), configloader.NetworkConfig{Name: "Testnet"})
	require.NoError(t, err)

	def := p.Active()
	assert.Equal(t, uint64(296), def.ChainID)
	assert.Equal(t, "https://testnet.hashio.io/api", def.PrimaryRPCURL)
	assert.Equal(t, "testnet", def.Identifier)
}

func TestProviderAppliesOverrides(t *testing.T) {
	p, err := NewNetworkDefinitionProvider(logger.NewNop(), configloader.NetworkConfig{
		Name:            "mainnet",
		RPCURL:          "http://localhost:7546",
		FallbackRPCURLs: []string{"http://localhost:7547"},
		ChainID:         298,
	})
	require.NoError(t, err)

	def := p.Active()
	assert.Equal(t, "mainnet", def.Identifier)
	assert.Equal(t, "http://localhost:7546", def.PrimaryRPCURL)
	assert.Equal(t, []string{"http://localhost:7547"}, def.FallbackRPCURLs)
	assert.Equal(t, uint64(298), def.ChainID)

	// built-in definitions are not mutated by overrides
	assert.Equal(t, "https://mainnet.hashio.io/api", Mainnet.PrimaryRPCURL)
}

func TestProviderRejectsUnknownNetwork(t *testing.T) {
	_, err := NewNetworkDefinitionProvider(logger.NewNop(), configloader.NetworkConfig{Name: "goerli"})
	require.Error(t, err)
}

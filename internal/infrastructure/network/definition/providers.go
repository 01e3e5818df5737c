package networkdefinition

import (
	"fmt"
	"strings"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/infrastructure/configloader"
)

// NetworkDefinitionProvider provides network definitions.
type NetworkDefinitionProvider struct {
	logger port.Logger
	active entity.NetworkDefinition
}

var _ port.NetworkDefinitionProvider = (*NetworkDefinitionProvider)(nil)

// Predefined network definitions. The JSON-RPC relay reports native amounts with 18 decimals.
var ( //nolint:gochecknoglobals // Global for definitions
	Testnet = entity.NetworkDefinition{
		ChainID:          296,
		Name:             "Hedera Testnet",
		Identifier:       "testnet",
		NativeSymbol:     "HBAR",
		Decimals:         18,
		PrimaryRPCURL:    "https://testnet.hashio.io/api",
		MirrorNodeURL:    "https://testnet.mirrornode.hedera.com",
		BlockExplorerURL: "https://hashscan.io/testnet",
	}
	Mainnet = entity.NetworkDefinition{
		ChainID:          295,
		Name:             "Hedera Mainnet",
		Identifier:       "mainnet",
		NativeSymbol:     "HBAR",
		Decimals:         18,
		PrimaryRPCURL:    "https://mainnet.hashio.io/api",
		MirrorNodeURL:    "https://mainnet-public.mirrornode.hedera.com",
		BlockExplorerURL: "https://hashscan.io/mainnet",
	}
	Previewnet = entity.NetworkDefinition{
		ChainID:          297,
		Name:             "Hedera Previewnet",
		Identifier:       "previewnet",
		NativeSymbol:     "HBAR",
		Decimals:         18,
		PrimaryRPCURL:    "https://previewnet.hashio.io/api",
		MirrorNodeURL:    "https://previewnet.mirrornode.hedera.com",
		BlockExplorerURL: "https://hashscan.io/previewnet",
	}
)

var allKnownDefinitions = map[string]entity.NetworkDefinition{ //nolint:gochecknoglobals
	Testnet.Identifier:    Testnet,
	Mainnet.Identifier:    Mainnet,
	Previewnet.Identifier: Previewnet,
}

// NewNetworkDefinitionProvider resolves the configured network, applying any endpoint overrides.
func NewNetworkDefinitionProvider(log port.Logger, cfg configloader.NetworkConfig) (*NetworkDefinitionProvider, error) {
	identifier := strings.ToLower(strings.TrimSpace(cfg.Name))
	def, ok := allKnownDefinitions[identifier]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", cfg.Name)
	}

	if cfg.RPCURL != "" {
		def.PrimaryRPCURL = cfg.RPCURL
	}
	if len(cfg.FallbackRPCURLs) > 0 {
		def.FallbackRPCURLs = append([]string(nil), cfg.FallbackRPCURLs...)
	}
	if cfg.ChainID != 0 {
		def.ChainID = cfg.ChainID
	}
	if cfg.MirrorNodeURL != "" {
		def.MirrorNodeURL = cfg.MirrorNodeURL
	}

	log.Info("Network definition resolved", "network", def.Name, "chain_id", def.ChainID, "rpc_primary", def.PrimaryRPCURL)
	return &NetworkDefinitionProvider{
		logger: log,
		active: def,
	}, nil
}

// Active returns the network this process talks to.
func (p *NetworkDefinitionProvider) Active() entity.NetworkDefinition {
	return p.active
}

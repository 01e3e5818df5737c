package entity

// NetworkDefinition holds the static description of a ledger network reachable over JSON-RPC.
type NetworkDefinition struct {
	ChainID          uint64   `json:"chainId" yaml:"chainId"`
	Name             string   `json:"name" yaml:"name"`
	Identifier       string   `json:"identifier" yaml:"identifier"` // "testnet", "mainnet", "previewnet"
	NativeSymbol     string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals         uint8    `json:"decimals" yaml:"decimals"` // decimals of the JSON-RPC base unit
	PrimaryRPCURL    string   `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs  []string `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	MirrorNodeURL    string   `json:"mirrorNodeUrl" yaml:"mirrorNodeUrl"`
	BlockExplorerURL string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
}

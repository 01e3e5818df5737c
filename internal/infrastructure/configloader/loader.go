package configloader

import (
	"fmt"
	"os"
	"strings"
	"time"

	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTokenServiceAddress is the token-service system contract.
	DefaultTokenServiceAddress = "0x0000000000000000000000000000000000000167"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Port                string   `yaml:"port"`
	ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds"`
	AllowedOrigins      []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// NetworkConfig selects the ledger network. Empty fields fall back to the built-in definition.
type NetworkConfig struct {
	Name            string   `yaml:"name"` // testnet, mainnet, previewnet
	RPCURL          string   `yaml:"rpcURL"`
	FallbackRPCURLs []string `yaml:"fallbackRpcURLs"`
	ChainID         uint64   `yaml:"chainID"`
	MirrorNodeURL   string   `yaml:"mirrorNodeURL"`
}

// ContractsConfig holds the addresses of the contracts the core talks to.
type ContractsConfig struct {
	Pool         string `yaml:"pool"`
	TokenService string `yaml:"tokenService"`
}

// WalletConfig configures pairing with the local wallet agent.
type WalletConfig struct {
	Metadata                entity.AppMetadata `yaml:"metadata"`
	KeyFile                 string             `yaml:"keyFile"`
	PassphraseEnv           string             `yaml:"passphraseEnv"`
	PairingTimeoutSeconds   int                `yaml:"pairingTimeoutSeconds"`
	FailedResetAfterSeconds int                `yaml:"failedResetAfterSeconds"`
}

// MirrorNodeConfig holds the mirror node REST client settings.
type MirrorNodeConfig struct {
	RequestTimeoutMillis int64 `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int   `yaml:"cacheTTLMinutes"`
}

// RpcClientConfig holds JSON-RPC client settings.
type RpcClientConfig struct {
	DialTimeoutSeconds int   `yaml:"dialTimeoutSeconds"`
	CallTimeoutMs      int64 `yaml:"callTimeoutMs"`
	RateLimit          int   `yaml:"rateLimit"`
	BurstLimit         int   `yaml:"burstLimit"`
}

// TransactionsConfig holds write-path settings.
type TransactionsConfig struct {
	ConfirmTimeoutSeconds int    `yaml:"confirmTimeoutSeconds"`
	PollIntervalMillis    int64  `yaml:"pollIntervalMillis"`
	FallbackGasLimit      uint64 `yaml:"fallbackGasLimit"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the top-level configuration structure. It is read once at startup.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Network      NetworkConfig      `yaml:"network"`
	Contracts    ContractsConfig    `yaml:"contracts"`
	Wallet       WalletConfig       `yaml:"wallet"`
	MirrorNode   MirrorNodeConfig   `yaml:"mirrorNode"`
	RpcClient    RpcClientConfig    `yaml:"rpcClient"`
	Transactions TransactionsConfig `yaml:"transactions"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// PairingTimeout returns the wallet handshake bound.
func (c *Config) PairingTimeout() time.Duration {
	return time.Duration(c.Wallet.PairingTimeoutSeconds) * time.Second
}

// FailedResetAfter returns how long a failed session stays observable. Zero disables the timer.
func (c *Config) FailedResetAfter() time.Duration {
	return time.Duration(c.Wallet.FailedResetAfterSeconds) * time.Second
}

// ConfirmTimeout returns the bounded wait for a transaction receipt.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Transactions.ConfirmTimeoutSeconds) * time.Second
}

// PollInterval returns the receipt polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Transactions.PollIntervalMillis) * time.Millisecond
}

// CallTimeout returns the per-call RPC timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.RpcClient.CallTimeoutMs) * time.Millisecond
}

// DialTimeout returns the RPC connection timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.RpcClient.DialTimeoutSeconds) * time.Second
}

// PoolAddress returns the parsed pool contract address.
func (c *Config) PoolAddress() common.Address {
	return common.HexToAddress(c.Contracts.Pool)
}

// TokenServiceAddress returns the parsed token-service address.
func (c *Config) TokenServiceAddress() common.Address {
	return common.HexToAddress(c.Contracts.TokenService)
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals raw YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 120
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Network.Name == "" {
		cfg.Network.Name = "testnet"
		logrus.Infof("network.name not set, defaulting to %s", cfg.Network.Name)
	}
	cfg.Network.Name = strings.ToLower(cfg.Network.Name)
	if cfg.Contracts.TokenService == "" {
		cfg.Contracts.TokenService = DefaultTokenServiceAddress
		logrus.Infof("contracts.tokenService not set, defaulting to %s", cfg.Contracts.TokenService)
	}
	if cfg.Wallet.Metadata.Name == "" {
		cfg.Wallet.Metadata.Name = "FundChain"
	}
	if cfg.Wallet.Metadata.Description == "" {
		cfg.Wallet.Metadata.Description = "FundChain Hedera dApp"
	}
	if cfg.Wallet.PassphraseEnv == "" {
		cfg.Wallet.PassphraseEnv = "FUNDCHAIN_WALLET_PASSPHRASE"
	}
	if cfg.Wallet.PairingTimeoutSeconds <= 0 {
		cfg.Wallet.PairingTimeoutSeconds = 60
	}
	if cfg.MirrorNode.RequestTimeoutMillis <= 0 {
		cfg.MirrorNode.RequestTimeoutMillis = 10000
	}
	if cfg.MirrorNode.CacheTTLMinutes <= 0 {
		cfg.MirrorNode.CacheTTLMinutes = 60
	}
	if cfg.RpcClient.DialTimeoutSeconds <= 0 {
		cfg.RpcClient.DialTimeoutSeconds = 10
	}
	if cfg.RpcClient.CallTimeoutMs <= 0 {
		cfg.RpcClient.CallTimeoutMs = 15000
	}
	if cfg.RpcClient.RateLimit <= 0 {
		cfg.RpcClient.RateLimit = 10
		logrus.Infof("rpcClient.rateLimit not set, defaulting to %d req/s", cfg.RpcClient.RateLimit)
	}
	if cfg.RpcClient.BurstLimit <= 0 {
		cfg.RpcClient.BurstLimit = cfg.RpcClient.RateLimit
	}
	if cfg.Transactions.ConfirmTimeoutSeconds <= 0 {
		cfg.Transactions.ConfirmTimeoutSeconds = 90
	}
	if cfg.Transactions.PollIntervalMillis <= 0 {
		cfg.Transactions.PollIntervalMillis = 2000
	}
	if cfg.Transactions.FallbackGasLimit == 0 {
		cfg.Transactions.FallbackGasLimit = 400000
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if !common.IsHexAddress(cfg.Contracts.Pool) {
		return fmt.Errorf("contracts.pool %q is not a valid address", cfg.Contracts.Pool)
	}
	if common.HexToAddress(cfg.Contracts.Pool) == (common.Address{}) {
		logrus.Warn("contracts.pool is the zero address; reads will fail until a deployed pool is configured")
	}
	if !common.IsHexAddress(cfg.Contracts.TokenService) {
		return fmt.Errorf("contracts.tokenService %q is not a valid address", cfg.Contracts.TokenService)
	}
	return nil
}

package client

import (
	"fmt"
	"sync"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
)

// EVMClientProvider caches one EVMClient per network.
type EVMClientProvider struct {
	clients map[string]*EVMClient
	mu      sync.Mutex
	opts    Options
	logger  port.Logger
	dial    func(entity.NetworkDefinition, Options, port.Logger) (*EVMClient, error)
}

// NewEVMClientProvider creates a new EVMClientProvider.
func NewEVMClientProvider(opts Options, logger port.Logger) *EVMClientProvider {
	return &EVMClientProvider{
		clients: make(map[string]*EVMClient),
		opts:    opts,
		logger:  logger,
		dial:    NewEVMClient,
	}
}

// GetClient retrieves the client for netDef, dialing it on first use.
func (p *EVMClientProvider) GetClient(netDef entity.NetworkDefinition) (*EVMClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	clientKey := fmt.Sprintf("%s/%d", netDef.Identifier, netDef.ChainID)
	if c, exists := p.clients[clientKey]; exists {
		p.logger.Debug("Returning cached EVM client", "network", netDef.Name)
		return c, nil
	}

	p.logger.Info("Creating new EVM client", "network", netDef.Name, "rpc_primary", netDef.PrimaryRPCURL)
	newClient, err := p.dial(netDef, p.opts, p.logger)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", netDef.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}

	p.clients[clientKey] = newClient
	return newClient, nil
}

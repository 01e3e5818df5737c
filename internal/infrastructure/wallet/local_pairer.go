package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var errPairingClosed = errors.New("pairing closed")

// KeySource yields the private key of the local wallet agent.
type KeySource interface {
	Load() (*ecdsa.PrivateKey, error)
}

// LocalPairer pairs with a key held on this host. The whole handshake, key
// decryption and account lookup included, happens inside Pair.
type LocalPairer struct {
	keys     KeySource
	resolver port.AccountResolver
	logger   port.Logger
}

var _ port.Pairer = (*LocalPairer)(nil)

// NewLocalPairer creates a new LocalPairer.
func NewLocalPairer(keys KeySource, resolver port.AccountResolver, logger port.Logger) *LocalPairer {
	return &LocalPairer{keys: keys, resolver: resolver, logger: logger}
}

// Pair implements port.Pairer.
func (p *LocalPairer) Pair(ctx context.Context, meta entity.AppMetadata) (*port.Pairing, error) {
	p.logger.Info("Pairing with local wallet agent", "app", meta.Name, "url", meta.URL)

	key, err := p.keys.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet key: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	accountID, err := p.resolver.ResolveAccountID(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account id for %s: %w", address.Hex(), err)
	}

	signer := &KeySigner{key: key, address: address, accountID: accountID}
	return &port.Pairing{
		AccountID: accountID,
		Address:   address,
		Signer:    signer,
		Close:     signer.release,
	}, nil
}

// KeySigner signs with an in-memory key until the pairing is closed.
type KeySigner struct {
	mu        sync.RWMutex
	key       *ecdsa.PrivateKey
	address   common.Address
	accountID string
}

var _ port.Signer = (*KeySigner)(nil)

// Address implements port.Signer.
func (s *KeySigner) Address() common.Address { return s.address }

// AccountID implements port.Signer.
func (s *KeySigner) AccountID() string { return s.accountID }

// SignTx implements port.Signer.
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, errPairingClosed
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

func (s *KeySigner) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = nil
}

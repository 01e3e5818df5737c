package session

import (
	"math/big"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SignerProvider hands out signers bound to the session generation they were
// obtained under. A bound signer stops working once that session ends.
type SignerProvider struct {
	store *Store
}

var _ port.SignerProvider = (*SignerProvider)(nil)

// NewSignerProvider creates a new SignerProvider.
func NewSignerProvider(store *Store) *SignerProvider {
	return &SignerProvider{store: store}
}

// GetSigner never blocks and never fails loudly: it reports false when no wallet is connected.
func (p *SignerProvider) GetSigner() (port.Signer, bool) {
	inner, gen, ok := p.store.currentSigner()
	if !ok {
		return nil, false
	}
	return &boundSigner{
		inner: inner,
		store: p.store,
		gen:   gen,
	}, true
}

// RequireSigner is GetSigner for callers that want an error value.
func (p *SignerProvider) RequireSigner() (port.Signer, error) {
	signer, ok := p.GetSigner()
	if !ok {
		return nil, entity.ErrSignerUnavailable
	}
	return signer, nil
}

type boundSigner struct {
	inner port.Signer
	store *Store
	gen   uint64
}

func (b *boundSigner) Address() common.Address { return b.inner.Address() }

func (b *boundSigner) AccountID() string { return b.inner.AccountID() }

func (b *boundSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	inner, ok := b.store.signerFor(b.gen)
	if !ok {
		return nil, entity.ErrSignerUnavailable
	}
	return inner.SignTx(tx, chainID)
}

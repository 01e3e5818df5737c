package port

import (
	"context"
	"math/big"

	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer authorizes transactions on behalf of a connected account.
type Signer interface {
	Address() common.Address
	AccountID() string
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Pairing is the result of a completed wallet handshake.
type Pairing struct {
	AccountID string
	Address   common.Address
	Signer    Signer
	// Revoked is closed when the wallet ends the pairing on its side. May be nil.
	Revoked <-chan struct{}
	// Close releases the pairing. May be nil.
	Close func()
}

// Pairer performs the wallet handshake. Pair is called once per connect attempt.
type Pairer interface {
	Pair(ctx context.Context, meta entity.AppMetadata) (*Pairing, error)
}

// AccountResolver maps a chain address to the ledger-native account id.
type AccountResolver interface {
	ResolveAccountID(ctx context.Context, address common.Address) (string, error)
}

// SignerProvider hands out the current signer without blocking.
type SignerProvider interface {
	GetSigner() (Signer, bool)
}

// SessionState is the part of the session store that readers and balance updates need.
type SessionState interface {
	Snapshot() entity.WalletSession
	// UpdateBalance applies balance if generation is still the connected one.
	UpdateBalance(generation uint64, balance *big.Int) bool
}

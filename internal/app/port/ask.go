package port

import (
	"context"
	"math/big"

	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// AskReader is the read gateway contract.
type AskReader interface {
	ListAsks(ctx context.Context) ([]entity.InvestmentAsk, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	ListInvestments(ctx context.Context, investor common.Address) ([]entity.Investment, error)
}

// PendingTx is a submitted transaction whose outcome may still be unknown.
type PendingTx interface {
	Snapshot() entity.PendingTransaction
	Done() <-chan struct{}
	// Await blocks until the outcome is known or ctx ends. A nil error means Confirmed.
	Await(ctx context.Context) (*entity.Receipt, error)
}

// AskWriter is the write gateway contract.
type AskWriter interface {
	CreateAsk(ctx context.Context, signer Signer, params entity.CreateAskParams) (PendingTx, error)
	Invest(ctx context.Context, signer Signer, askID uint64, amount *big.Int) (PendingTx, error)
	MintToken(ctx context.Context, signer Signer, params entity.MintParams) (PendingTx, error)
	TransferToken(ctx context.Context, signer Signer, params entity.TransferParams) (PendingTx, error)
}

package port

import (
	"context"
	"math/big"

	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LedgerReader is the read side of the ledger JSON-RPC interface.
// *ethclient.Client satisfies it.
type LedgerReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// TransactionSubmitter is the write side of the ledger interface.
type TransactionSubmitter interface {
	// SubmitTransaction signs and sends call exactly once and returns the provisional hash.
	SubmitTransaction(ctx context.Context, signer Signer, call entity.ContractCall) (common.Hash, error)
	// WaitReceipt blocks until a receipt is observed or ctx ends.
	WaitReceipt(ctx context.Context, txHash common.Hash) (*entity.Receipt, error)
}

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// Active returns the network this process talks to, overrides applied.
	Active() entity.NetworkDefinition
}

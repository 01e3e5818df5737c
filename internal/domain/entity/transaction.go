package entity

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind identifies which write operation produced a transaction.
type TxKind int

const (
	TxCreateAsk TxKind = iota
	TxInvest
	TxMint
	TxTransfer
)

func (k TxKind) String() string {
	switch k {
	case TxCreateAsk:
		return "create_ask"
	case TxInvest:
		return "invest"
	case TxMint:
		return "mint"
	case TxTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// TxState is the local view of a submitted transaction.
// TimedOut and Abandoned mean the outcome is unknown, not that it failed.
type TxState int

const (
	TxSubmitted TxState = iota
	TxConfirmed
	TxFailed
	TxTimedOut
	TxAbandoned
)

func (s TxState) String() string {
	switch s {
	case TxSubmitted:
		return "submitted"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	case TxTimedOut:
		return "timed_out"
	case TxAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Final reports whether no further transition is expected locally.
func (s TxState) Final() bool {
	return s != TxSubmitted
}

// PendingTransaction is a snapshot of a submitted write.
type PendingTransaction struct {
	ID          string
	TxHash      common.Hash
	Kind        TxKind
	State       TxState
	AskID       *uint64
	SubmittedAt time.Time
	Err         error
}

// Receipt is the ledger acknowledgement of a transaction.
type Receipt struct {
	TxHash      common.Hash
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
	// RevertReason and ErrorCode are filled on a best-effort basis for reverted transactions.
	RevertReason string
	ErrorCode    string
}

// ContractCall is a fully encoded call ready to be signed.
type ContractCall struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// MintParams are the inputs of the token-service mintToken call.
type MintParams struct {
	Token  common.Address
	Amount int64
}

// TransferParams are the inputs of the token-service transferToken call.
// The sender is always the signer's own address.
type TransferParams struct {
	Token     common.Address
	Recipient common.Address
	Amount    int64
}

package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AskStatus is the contract-side lifecycle of an ask. Values the client does
// not know are passed through untouched.
type AskStatus uint8

const (
	AskActive AskStatus = iota
	AskFunded
	AskFailed
	AskDistributed
)

// Known reports whether the status is one the client understands.
func (s AskStatus) Known() bool {
	return s <= AskDistributed
}

func (s AskStatus) String() string {
	switch s {
	case AskActive:
		return "Active"
	case AskFunded:
		return "Funded"
	case AskFailed:
		return "Failed"
	case AskDistributed:
		return "Distributed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// InvestmentAsk is one fundraising record held by the pool contract.
// Amounts are in base units.
type InvestmentAsk struct {
	ID           uint64
	Business     string
	TargetAmount *big.Int
	RaisedAmount *big.Int
	Status       AskStatus
}

// Clone returns a copy that shares no big.Int with the receiver.
func (a InvestmentAsk) Clone() InvestmentAsk {
	out := a
	if a.TargetAmount != nil {
		out.TargetAmount = new(big.Int).Set(a.TargetAmount)
	}
	if a.RaisedAmount != nil {
		out.RaisedAmount = new(big.Int).Set(a.RaisedAmount)
	}
	return out
}

// Equal compares two asks field by field.
func (a InvestmentAsk) Equal(b InvestmentAsk) bool {
	return a.ID == b.ID &&
		a.Business == b.Business &&
		a.Status == b.Status &&
		bigEqual(a.TargetAmount, b.TargetAmount) &&
		bigEqual(a.RaisedAmount, b.RaisedAmount)
}

// CloneAsks deep-copies a snapshot.
func CloneAsks(in []InvestmentAsk) []InvestmentAsk {
	out := make([]InvestmentAsk, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// CreateAskParams are the inputs of createInvestmentAsk.
type CreateAskParams struct {
	Business     string
	TargetAmount *big.Int
	Description  string
}

// Investment is a decoded Invested event.
type Investment struct {
	Investor    common.Address
	AskID       uint64
	Amount      *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SessionStatus is the wallet connection state.
type SessionStatus int

const (
	SessionDisconnected SessionStatus = iota
	SessionConnecting
	SessionConnected
	SessionFailed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WalletSession is an immutable snapshot of the wallet connection.
// AccountID, ChainAddress and Balance are only set when Status is SessionConnected.
type WalletSession struct {
	Status       SessionStatus
	Generation   uint64
	AccountID    string
	ChainAddress *common.Address
	Balance      *big.Int
	LastError    error
}

// Connected reports whether the snapshot carries an identity.
func (s WalletSession) Connected() bool {
	return s.Status == SessionConnected && s.ChainAddress != nil
}

// Clone returns a deep copy so callers can never alias the store's state.
func (s WalletSession) Clone() WalletSession {
	out := s
	if s.ChainAddress != nil {
		addr := *s.ChainAddress
		out.ChainAddress = &addr
	}
	if s.Balance != nil {
		out.Balance = new(big.Int).Set(s.Balance)
	}
	return out
}

// AppMetadata describes this application to the wallet during pairing.
type AppMetadata struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
	URL         string `json:"url" yaml:"url"`
}

// Account is the identity of a connected wallet.
type Account struct {
	AccountID string
	Address   common.Address
}

package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSignerUnavailable is returned when a signer is needed but no wallet is connected.
	ErrSignerUnavailable = errors.New("signer unavailable: wallet not connected")
	// ErrSessionDisconnected marks a pairing attempt abandoned by disconnect.
	ErrSessionDisconnected = errors.New("session disconnected")
	// ErrTransactionAbandoned means the caller stopped waiting; the transaction may still land.
	ErrTransactionAbandoned = errors.New("stopped waiting for transaction")
)

// PairingFailure reports that the wallet handshake did not complete.
type PairingFailure struct {
	Cause error
}

func (e *PairingFailure) Error() string {
	return fmt.Sprintf("wallet pairing failed: %v", e.Cause)
}

func (e *PairingFailure) Unwrap() error { return e.Cause }

// InvalidInputError is raised by local validation, before anything reaches the ledger.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInvalidInput creates a new InvalidInputError.
func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

// ReadFailure wraps a failed or malformed ledger read.
type ReadFailure struct {
	Op    string
	Cause error
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("ledger read %s failed: %v", e.Op, e.Cause)
}

func (e *ReadFailure) Unwrap() error { return e.Cause }

// TransactionRejected means the ledger reverted the transaction.
type TransactionRejected struct {
	TxHash common.Hash
	Reason string
	Code   string
}

func (e *TransactionRejected) Error() string {
	msg := fmt.Sprintf("transaction %s reverted", e.TxHash.Hex())
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Code != "" {
		msg += " (code " + e.Code + ")"
	}
	return msg
}

// TransactionTimeout means no receipt was observed in time. The outcome is unknown.
type TransactionTimeout struct {
	TxHash common.Hash
	Waited time.Duration
}

func (e *TransactionTimeout) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %s, outcome unknown", e.TxHash.Hex(), e.Waited)
}

// IsPairingFailure checks whether an error is a PairingFailure and returns it.
func IsPairingFailure(err error) (*PairingFailure, bool) {
	var e *PairingFailure
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsInvalidInput checks whether an error is an InvalidInputError and returns it.
func IsInvalidInput(err error) (*InvalidInputError, bool) {
	var e *InvalidInputError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsReadFailure checks whether an error is a ReadFailure and returns it.
func IsReadFailure(err error) (*ReadFailure, bool) {
	var e *ReadFailure
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRejected checks whether an error is a TransactionRejected and returns it.
func IsRejected(err error) (*TransactionRejected, bool) {
	var e *TransactionRejected
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTimeout checks whether an error is a TransactionTimeout and returns it.
func IsTimeout(err error) (*TransactionTimeout, bool) {
	var e *TransactionTimeout
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

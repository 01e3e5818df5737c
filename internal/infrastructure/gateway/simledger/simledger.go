// Package simledger is an in-memory pool contract and token service used by tests.
// It decodes calldata with the real ABIs, so it exercises the same encoding as a live relay.
package simledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/infrastructure/gateway"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// PoolAddress is where the simulated pool lives.
	PoolAddress = common.HexToAddress("0x00000000000000000000000000000000000f00d0")
	// TokenServiceAddress is the simulated token-service precompile.
	TokenServiceAddress = common.HexToAddress(gatewayTokenService)
	// ChainID is the chain id the simulator signs for.
	ChainID = big.NewInt(296)
)

const gatewayTokenService = "0x0000000000000000000000000000000000000167"

type askRecord struct {
	Id       *big.Int
	Business string
	Amount   *big.Int
	Funded   *big.Int
	Status   uint8
}

type submitted struct {
	receipt *entity.Receipt
	mined   chan struct{}
	apply   func() (string, bool)
}

// Ledger is a simulated ledger. The zero value is not usable; call New.
type Ledger struct {
	mu           sync.Mutex
	asks         map[uint64]*askRecord
	descriptions map[uint64]string
	balances     map[common.Address]*big.Int
	tokens       map[common.Address]map[common.Address]int64
	supply       map[common.Address]int64
	logs         []types.Log
	txs          map[common.Hash]*submitted
	queue        []common.Hash
	nonce        uint64
	block        uint64
	current      common.Hash
	manual       bool

	// ReadErr, when set, fails every read.
	ReadErr error
	// RawAsks, when set, is returned verbatim by getAllAsks.
	RawAsks []byte

	reads   atomic.Int64
	submits atomic.Int64
}

// New creates an empty ledger that mines every transaction as soon as it is submitted.
func New() *Ledger {
	return &Ledger{
		asks:         make(map[uint64]*askRecord),
		descriptions: make(map[uint64]string),
		balances:     make(map[common.Address]*big.Int),
		tokens:       make(map[common.Address]map[common.Address]int64),
		supply:       make(map[common.Address]int64),
		txs:          make(map[common.Hash]*submitted),
		block:        1,
	}
}

var (
	_ port.LedgerReader         = (*Ledger)(nil)
	_ port.TransactionSubmitter = (*Ledger)(nil)
)

// SetManualMining holds submitted transactions until Mine is called.
func (l *Ledger) SetManualMining(manual bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.manual = manual
}

// AddAsk seeds an ask.
func (l *Ledger) AddAsk(a entity.InvestmentAsk) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.asks[a.ID] = &askRecord{
		Id:       new(big.Int).SetUint64(a.ID),
		Business: a.Business,
		Amount:   new(big.Int).Set(a.TargetAmount),
		Funded:   new(big.Int).Set(a.RaisedAmount),
		Status:   uint8(a.Status),
	}
}

// SetStatus flips an ask's status the way the contract would.
func (l *Ledger) SetStatus(id uint64, status entity.AskStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.asks[id]; ok {
		a.Status = uint8(status)
	}
}

// Description returns the description stored by createInvestmentAsk.
func (l *Ledger) Description(id uint64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.descriptions[id]
}

// SetBalance sets a native balance.
func (l *Ledger) SetBalance(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Set(amount)
}

// TokenBalance returns a token balance held by owner.
func (l *Ledger) TokenBalance(token, owner common.Address) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[token][owner]
}

// Reads counts read calls seen by the ledger.
func (l *Ledger) Reads() int64 { return l.reads.Load() }

// Submits counts transactions handed to the ledger.
func (l *Ledger) Submits() int64 { return l.submits.Load() }

// NetworkCalls counts every call that reached the ledger.
func (l *Ledger) NetworkCalls() int64 { return l.Reads() + l.Submits() }

// Mine applies every queued transaction in submission order.
func (l *Ledger) Mine() {
	l.mu.Lock()
	queue := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, h := range queue {
		l.mine(h)
	}
}

func (l *Ledger) mine(h common.Hash) {
	l.mu.Lock()
	tx := l.txs[h]
	l.block++
	l.current = h
	reason, ok := tx.apply()
	tx.receipt = &entity.Receipt{TxHash: h, Success: ok, BlockNumber: l.block, GasUsed: 21000, RevertReason: reason}
	l.mu.Unlock()
	close(tx.mined)
}

// CallContract implements port.LedgerReader.
func (l *Ledger) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	l.reads.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	if msg.To == nil || *msg.To != PoolAddress {
		return nil, nil
	}
	parsed, err := gateway.PoolABI()
	if err != nil {
		return nil, err
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != "getAllAsks" {
		return nil, fmt.Errorf("simledger: %s is not a view", method.Name)
	}
	if l.RawAsks != nil {
		return l.RawAsks, nil
	}
	out := make([]askRecord, 0, len(l.asks))
	for _, a := range l.asks {
		out = append(out, *a)
	}
	return method.Outputs.Pack(out)
}

// BalanceAt implements port.LedgerReader.
func (l *Ledger) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	l.reads.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// FilterLogs implements port.LedgerReader.
func (l *Ledger) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	l.reads.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	var out []types.Log
	for _, lg := range l.logs {
		if matches(lg, q) {
			out = append(out, lg)
		}
	}
	return out, nil
}

func matches(lg types.Log, q ethereum.FilterQuery) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == lg.Address {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(lg.Topics) {
			return false
		}
		found := false
		for _, t := range alternatives {
			if t == lg.Topics[i] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SubmitTransaction implements port.TransactionSubmitter.
func (l *Ledger) SubmitTransaction(_ context.Context, signer port.Signer, call entity.ContractCall) (common.Hash, error) {
	if signer == nil {
		return common.Hash{}, entity.ErrSignerUnavailable
	}
	l.submits.Add(1)

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	l.mu.Lock()
	nonce := l.nonce
	l.nonce++
	l.mu.Unlock()

	to := call.To
	signed, err := signer.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		Gas:      400000,
		To:       &to,
		Value:    value,
		Data:     call.Data,
	}), ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	apply, err := l.decode(signer.Address(), call.To, call.Data, value)
	if err != nil {
		return common.Hash{}, err
	}

	h := signed.Hash()
	l.mu.Lock()
	l.txs[h] = &submitted{mined: make(chan struct{}), apply: apply}
	manual := l.manual
	if manual {
		l.queue = append(l.queue, h)
	}
	l.mu.Unlock()
	if !manual {
		l.mine(h)
	}
	return h, nil
}

// WaitReceipt implements port.TransactionSubmitter.
func (l *Ledger) WaitReceipt(ctx context.Context, txHash common.Hash) (*entity.Receipt, error) {
	l.mu.Lock()
	tx, ok := l.txs[txHash]
	l.mu.Unlock()
	if !ok {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	select {
	case <-tx.mined:
		l.mu.Lock()
		defer l.mu.Unlock()
		r := *tx.receipt
		return &r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decode turns calldata into a state transition applied at mining time. It runs without l.mu held.
func (l *Ledger) decode(from, to common.Address, data []byte, value *big.Int) (func() (string, bool), error) {
	if len(data) < 4 {
		return nil, errors.New("simledger: calldata too short")
	}
	var parsed abi.ABI
	var err error
	switch to {
	case PoolAddress:
		parsed, err = gateway.PoolABI()
	case TokenServiceAddress:
		parsed, err = gateway.TokenServiceABI()
	default:
		return nil, fmt.Errorf("simledger: no contract at %s", to.Hex())
	}
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "createInvestmentAsk":
		business, amount, description := args[0].(string), args[1].(*big.Int), args[2].(string)
		return func() (string, bool) {
			id := uint64(1)
			for existing := range l.asks {
				if existing >= id {
					id = existing + 1
				}
			}
			l.asks[id] = &askRecord{Id: new(big.Int).SetUint64(id), Business: business, Amount: amount, Funded: new(big.Int)}
			l.descriptions[id] = description
			return "", true
		}, nil
	case "invest":
		askID := args[0].(*big.Int)
		return func() (string, bool) {
			if !askID.IsUint64() {
				return "ask does not exist", false
			}
			a, ok := l.asks[askID.Uint64()]
			if !ok {
				return "ask does not exist", false
			}
			if a.Status != uint8(entity.AskActive) {
				return "ask not active", false
			}
			if new(big.Int).Add(a.Funded, value).Cmp(a.Amount) > 0 {
				return "amount exceeds remaining", false
			}
			if bal := l.balances[from]; bal != nil {
				if bal.Cmp(value) < 0 {
					return "insufficient balance", false
				}
				l.balances[from] = new(big.Int).Sub(bal, value)
			}
			a.Funded = new(big.Int).Add(a.Funded, value)
			l.emitInvested(from, askID, value)
			return "", true
		}, nil
	case "mintToken":
		token, amount := args[0].(common.Address), args[1].(int64)
		return func() (string, bool) {
			l.credit(token, from, amount)
			l.supply[token] += amount
			return "", true
		}, nil
	case "transferToken":
		token, sender, recipient, amount := args[0].(common.Address), args[1].(common.Address), args[2].(common.Address), args[3].(int64)
		return func() (string, bool) {
			if sender != from {
				return "sender is not the caller", false
			}
			if l.tokens[token][sender] < amount {
				return "insufficient token balance", false
			}
			l.credit(token, sender, -amount)
			l.credit(token, recipient, amount)
			return "", true
		}, nil
	default:
		return nil, fmt.Errorf("simledger: unsupported method %s", method.Name)
	}
}

func (l *Ledger) credit(token, owner common.Address, amount int64) {
	if l.tokens[token] == nil {
		l.tokens[token] = make(map[common.Address]int64)
	}
	l.tokens[token][owner] += amount
}

func (l *Ledger) emitInvested(investor common.Address, askID, amount *big.Int) {
	parsed, _ := gateway.PoolABI()
	event := parsed.Events["Invested"]
	data, err := event.Inputs.NonIndexed().Pack(askID, amount)
	if err != nil {
		return
	}
	l.logs = append(l.logs, types.Log{
		Address:     PoolAddress,
		Topics:      []common.Hash{event.ID, common.BytesToHash(investor.Bytes())},
		Data:        data,
		BlockNumber: l.block,
		TxHash:      l.current,
		Index:       uint(len(l.logs)),
	})
}

// Signer is a key-backed port.Signer for tests.
type Signer struct {
	key       *ecdsa.PrivateKey
	accountID string
}

// NewSigner creates a signer with a fresh key.
func NewSigner(accountID string) *Signer {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &Signer{key: key, accountID: accountID}
}

// Address implements port.Signer.
func (s *Signer) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

// AccountID implements port.Signer.
func (s *Signer) AccountID() string { return s.accountID }

// SignTx implements port.Signer.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

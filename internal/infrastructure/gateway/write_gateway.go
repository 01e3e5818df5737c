package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// DefaultConfirmTimeout bounds the wait for a receipt when none is configured.
const DefaultConfirmTimeout = 90 * time.Second

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// WriteGateway validates, encodes and submits pool and token-service transactions.
// Each call submits at most once; nothing is resubmitted on timeout.
type WriteGateway struct {
	submitter      port.TransactionSubmitter
	pool           common.Address
	tokenService   common.Address
	confirmTimeout time.Duration
	logger         port.Logger
}

var _ port.AskWriter = (*WriteGateway)(nil)

// NewWriteGateway creates a new WriteGateway.
func NewWriteGateway(
	submitter port.TransactionSubmitter,
	pool common.Address,
	tokenService common.Address,
	confirmTimeout time.Duration,
	logger port.Logger,
) *WriteGateway {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &WriteGateway{
		submitter:      submitter,
		pool:           pool,
		tokenService:   tokenService,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}
}

// CreateAsk submits createInvestmentAsk.
func (g *WriteGateway) CreateAsk(ctx context.Context, signer port.Signer, params entity.CreateAskParams) (port.PendingTx, error) {
	kind := entity.TxCreateAsk
	if signer == nil {
		return nil, entity.ErrSignerUnavailable
	}
	business := strings.TrimSpace(params.Business)
	if business == "" {
		return nil, g.invalid(kind, "business", "must not be empty")
	}
	if err := g.checkUint256(kind, "targetAmount", params.TargetAmount); err != nil {
		return nil, err
	}

	data, err := g.pack(PoolABI, methodCreateAsk, business, params.TargetAmount, params.Description)
	if err != nil {
		return nil, err
	}
	return g.submit(ctx, kind, signer, entity.ContractCall{To: g.pool, Data: data}, nil)
}

// Invest submits invest(askID) carrying amount as the attached value.
func (g *WriteGateway) Invest(ctx context.Context, signer port.Signer, askID uint64, amount *big.Int) (port.PendingTx, error) {
	kind := entity.TxInvest
	if signer == nil {
		return nil, entity.ErrSignerUnavailable
	}
	if err := g.checkUint256(kind, "amount", amount); err != nil {
		return nil, err
	}

	data, err := g.pack(PoolABI, methodInvest, new(big.Int).SetUint64(askID))
	if err != nil {
		return nil, err
	}
	id := askID
	return g.submit(ctx, kind, signer, entity.ContractCall{
		To:    g.pool,
		Data:  data,
		Value: new(big.Int).Set(amount),
	}, &id)
}

// MintToken submits mintToken on the token service.
func (g *WriteGateway) MintToken(ctx context.Context, signer port.Signer, params entity.MintParams) (port.PendingTx, error) {
	kind := entity.TxMint
	if signer == nil {
		return nil, entity.ErrSignerUnavailable
	}
	if params.Token == (common.Address{}) {
		return nil, g.invalid(kind, "token", "must not be the zero address")
	}
	if params.Amount <= 0 {
		return nil, g.invalid(kind, "amount", "must be greater than zero")
	}

	data, err := g.pack(TokenServiceABI, methodMintToken, params.Token, params.Amount)
	if err != nil {
		return nil, err
	}
	return g.submit(ctx, kind, signer, entity.ContractCall{To: g.tokenService, Data: data}, nil)
}

// TransferToken submits transferToken from the signer's own address.
func (g *WriteGateway) TransferToken(ctx context.Context, signer port.Signer, params entity.TransferParams) (port.PendingTx, error) {
	kind := entity.TxTransfer
	if signer == nil {
		return nil, entity.ErrSignerUnavailable
	}
	if params.Token == (common.Address{}) {
		return nil, g.invalid(kind, "token", "must not be the zero address")
	}
	if params.Recipient == (common.Address{}) {
		return nil, g.invalid(kind, "recipient", "must not be the zero address")
	}
	if params.Amount <= 0 {
		return nil, g.invalid(kind, "amount", "must be greater than zero")
	}

	data, err := g.pack(TokenServiceABI, methodTransferToken, params.Token, signer.Address(), params.Recipient, params.Amount)
	if err != nil {
		return nil, err
	}
	return g.submit(ctx, kind, signer, entity.ContractCall{To: g.tokenService, Data: data}, nil)
}

func (g *WriteGateway) checkUint256(kind entity.TxKind, field string, v *big.Int) error {
	switch {
	case v == nil:
		return g.invalid(kind, field, "is required")
	case v.Sign() <= 0:
		return g.invalid(kind, field, "must be greater than zero")
	case v.Cmp(maxUint256) > 0:
		return g.invalid(kind, field, "exceeds uint256")
	}
	return nil
}

func (g *WriteGateway) invalid(kind entity.TxKind, field, reason string) error {
	metrics.InvalidInputs.WithLabelValues(kind.String()).Inc()
	g.logger.Debug("Rejected write input", "kind", kind.String(), "field", field, "reason", reason)
	return entity.NewInvalidInput(field, reason)
}

func (g *WriteGateway) pack(abiFn func() (abi.ABI, error), method string, args ...any) ([]byte, error) {
	parsed, err := abiFn()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	return data, nil
}

func (g *WriteGateway) submit(ctx context.Context, kind entity.TxKind, signer port.Signer, call entity.ContractCall, askID *uint64) (port.PendingTx, error) {
	hash, err := g.submitter.SubmitTransaction(ctx, signer, call)
	if err != nil {
		g.logger.Error("Transaction submission failed", "kind", kind.String(), "from", signer.Address().Hex(), "error", err)
		if rejected, ok := entity.IsRejected(err); ok {
			metrics.TransactionOutcomes.WithLabelValues(kind.String(), entity.TxFailed.String()).Inc()
			return nil, rejected
		}
		if errors.Is(err, entity.ErrSignerUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}
	metrics.TransactionsSubmitted.WithLabelValues(kind.String()).Inc()
	g.logger.Info("Transaction submitted", "kind", kind.String(), "tx_hash", hash.Hex(), "from", signer.Address().Hex())

	p := newPendingTx(uuid.NewString(), hash, kind, askID, time.Now())
	trackCtx, cancel := context.WithTimeout(context.Background(), g.confirmTimeout)
	p.cancel = cancel
	go g.track(trackCtx, p)
	return p, nil
}

func (g *WriteGateway) track(ctx context.Context, p *PendingTx) {
	snap := p.Snapshot()
	receipt, err := g.submitter.WaitReceipt(ctx, snap.TxHash)
	switch {
	case err != nil:
		if p.resolve(entity.TxTimedOut, nil, &entity.TransactionTimeout{TxHash: snap.TxHash, Waited: g.confirmTimeout}) {
			g.logger.Warn("Transaction outcome unknown", "kind", snap.Kind.String(), "tx_hash", snap.TxHash.Hex(), "waited", g.confirmTimeout, "error", err)
		}
	case receipt.Success:
		if p.resolve(entity.TxConfirmed, receipt, nil) {
			g.logger.Info("Transaction confirmed", "kind", snap.Kind.String(), "tx_hash", snap.TxHash.Hex(), "block", receipt.BlockNumber)
		}
	default:
		rejected := &entity.TransactionRejected{TxHash: snap.TxHash, Reason: receipt.RevertReason, Code: receipt.ErrorCode}
		if p.resolve(entity.TxFailed, receipt, rejected) {
			g.logger.Warn("Transaction reverted", "kind", snap.Kind.String(), "tx_hash", snap.TxHash.Hex(), "reason", receipt.RevertReason)
		}
	}
}

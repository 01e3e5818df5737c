package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// gasBufferPercent is added on top of the node's estimate.
const gasBufferPercent = 20

// rpcBackend is the subset of *ethclient.Client the adapter needs.
type rpcBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Options tunes an EVMClient.
type Options struct {
	ConnectionTimeout time.Duration
	CallTimeout       time.Duration
	PollInterval      time.Duration
	FallbackGasLimit  uint64
	RateLimit         int
	BurstLimit        int
}

func (o Options) withDefaults() Options {
	if o.ConnectionTimeout <= 0 {
		o.ConnectionTimeout = 10 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.FallbackGasLimit == 0 {
		o.FallbackGasLimit = 400000
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 10
	}
	if o.BurstLimit <= 0 {
		o.BurstLimit = o.RateLimit
	}
	return o
}

// EVMClient adapts a JSON-RPC relay to port.LedgerReader and port.TransactionSubmitter.
type EVMClient struct {
	backend rpcBackend
	netDef  entity.NetworkDefinition
	chainID *big.Int
	opts    Options
	limiter *rate.Limiter
	logger  port.Logger
}

var (
	_ port.LedgerReader         = (*EVMClient)(nil)
	_ port.TransactionSubmitter = (*EVMClient)(nil)
)

// NewEVMClient dials the primary RPC of netDef, then its fallbacks, and returns the first that answers.
func NewEVMClient(netDef entity.NetworkDefinition, opts Options, logger port.Logger) (*EVMClient, error) {
	opts = opts.withDefaults()
	rpcURLs := append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
		c, err := ethclient.DialContext(ctx, rpcURL)
		if err == nil {
			var remoteID *big.Int
			remoteID, err = c.ChainID(ctx)
			if err == nil && remoteID.Uint64() != netDef.ChainID {
				err = fmt.Errorf("chainID mismatch: expected %d, got %s", netDef.ChainID, remoteID)
			}
			if err != nil {
				c.Close()
			}
		}
		cancel()

		if err == nil {
			logger.Info("Connected to ledger RPC", "network", netDef.Name, "rpc", rpcURL)
			return newEVMClient(c, netDef, opts, logger), nil
		}
		logger.Warn("RPC endpoint unavailable", "network", netDef.Name, "rpc", rpcURL, "error", err)
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

func newEVMClient(backend rpcBackend, netDef entity.NetworkDefinition, opts Options, logger port.Logger) *EVMClient {
	opts = opts.withDefaults()
	return &EVMClient{
		backend: backend,
		netDef:  netDef,
		chainID: new(big.Int).SetUint64(netDef.ChainID),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.BurstLimit),
		logger:  logger,
	}
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

func (c *EVMClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	return callCtx, cancel, nil
}

// CallContract executes a read-only call.
func (c *EVMClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.backend.CallContract(callCtx, msg, blockNumber)
}

// BalanceAt returns the native balance of account in base units.
func (c *EVMClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.backend.BalanceAt(callCtx, account, blockNumber)
}

// FilterLogs returns the logs matching q.
func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.backend.FilterLogs(callCtx, q)
}

// SubmitTransaction builds, signs and sends a legacy transaction. It sends at most once;
// an error after SendTransaction was attempted is never retried here.
func (c *EVMClient) SubmitTransaction(ctx context.Context, signer port.Signer, call entity.ContractCall) (common.Hash, error) {
	if signer == nil {
		return common.Hash{}, entity.ErrSignerUnavailable
	}
	from := signer.Address()
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.pendingNonce(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	gasLimit, err := c.estimateGas(ctx, ethereum.CallMsg{From: from, To: &call.To, Value: value, Data: call.Data})
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &call.To,
		Value:    value,
		Data:     call.Data,
	})
	signed, err := signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	defer cancel()
	if err := c.backend.SendTransaction(callCtx, signed); err != nil {
		c.logger.Error("Failed to send transaction", "tx_hash", signed.Hash().Hex(), "error", err)
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction submitted",
		"tx_hash", signed.Hash().Hex(),
		"from", from.Hex(),
		"to", call.To.Hex(),
		"nonce", nonce,
		"gas", gasLimit)
	return signed.Hash(), nil
}

// WaitReceipt polls for the receipt of txHash until it appears or ctx ends.
func (c *EVMClient) WaitReceipt(ctx context.Context, txHash common.Hash) (*entity.Receipt, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.receipt(ctx, txHash)
		if err == nil && receipt != nil {
			return c.toReceipt(ctx, receipt), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("Receipt query failed, will retry", "tx_hash", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *EVMClient) receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.backend.TransactionReceipt(callCtx, txHash)
}

func (c *EVMClient) toReceipt(ctx context.Context, r *types.Receipt) *entity.Receipt {
	out := &entity.Receipt{
		TxHash:  r.TxHash,
		Success: r.Status == types.ReceiptStatusSuccessful,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if !out.Success {
		out.RevertReason, out.ErrorCode = c.replayRevert(ctx, r)
	}
	return out
}

// replayRevert re-executes a reverted transaction at its block to recover the revert reason.
func (c *EVMClient) replayRevert(ctx context.Context, r *types.Receipt) (string, string) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return "", ""
	}
	defer cancel()

	tx, _, err := c.backend.TransactionByHash(callCtx, r.TxHash)
	if err != nil || tx == nil || tx.To() == nil {
		return "", ""
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return "", ""
	}
	_, err = c.backend.CallContract(callCtx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, r.BlockNumber)
	if err == nil {
		return "", ""
	}
	return RevertReason(err)
}

func (c *EVMClient) pendingNonce(ctx context.Context, from common.Address) (uint64, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	nonce, err := c.backend.PendingNonceAt(callCtx, from)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce for %s: %w", from.Hex(), err)
	}
	return nonce, nil
}

func (c *EVMClient) gasPrice(ctx context.Context) (*big.Int, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	price, err := c.backend.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

// estimateGas returns a buffered gas limit. A revert during estimation is reported as
// a rejection because the contract refused the call before anything was sent.
func (c *EVMClient) estimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	callCtx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	gas, err := c.backend.EstimateGas(callCtx, msg)
	if err != nil {
		if reason, code := RevertReason(err); reason != "" || code != "" || isRevert(err) {
			return 0, &entity.TransactionRejected{Reason: reason, Code: code}
		}
		c.logger.Warn("Gas estimation failed, using fallback gas limit", "fallback", c.opts.FallbackGasLimit, "error", err)
		return c.opts.FallbackGasLimit, nil
	}
	return gas + gas*gasBufferPercent/100, nil
}

// RevertReason extracts a human readable reason and, for custom errors, the 4-byte selector.
func RevertReason(err error) (reason string, code string) {
	if err == nil {
		return "", ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil && len(data) > 0 {
				if msg, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return msg, ""
				}
				if len(data) >= 4 {
					return "", hexutil.Encode(data[:4])
				}
			}
		}
	}
	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted: "); idx >= 0 {
		return msg[idx+len("execution reverted: "):], ""
	}
	return "", ""
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

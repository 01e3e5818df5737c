package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// askTuple mirrors one element of the getAllAsks tuple[] output, field by field in ABI order.
type askTuple struct {
	Id       *big.Int
	Business string
	Amount   *big.Int
	Funded   *big.Int
	Status   uint8
}

type investedEvent struct {
	AskId  *big.Int
	Amount *big.Int
}

var errEmptyResponse = errors.New("empty response, is the pool address a contract?")

// ReadGateway performs side-effect free queries against the pool contract.
// It never retries; callers decide.
type ReadGateway struct {
	reader port.LedgerReader
	pool   common.Address
	logger port.Logger
}

var _ port.AskReader = (*ReadGateway)(nil)

// NewReadGateway creates a new ReadGateway.
func NewReadGateway(reader port.LedgerReader, pool common.Address, logger port.Logger) *ReadGateway {
	return &ReadGateway{reader: reader, pool: pool, logger: logger}
}

// ListAsks returns every ask held by the pool, ordered by ascending ID.
func (g *ReadGateway) ListAsks(ctx context.Context) (asks []entity.InvestmentAsk, err error) {
	const op = "list_asks"
	defer observe(op, time.Now(), &err)

	parsed, err := PoolABI()
	if err != nil {
		return nil, &entity.ReadFailure{Op: op, Cause: err}
	}
	input, err := parsed.Pack(methodGetAllAsks)
	if err != nil {
		return nil, &entity.ReadFailure{Op: op, Cause: fmt.Errorf("pack: %w", err)}
	}

	out, err := g.reader.CallContract(ctx, ethereum.CallMsg{To: &g.pool, Data: input}, nil)
	if err != nil {
		g.logger.Warn("getAllAsks call failed", "pool", g.pool.Hex(), "error", err)
		return nil, &entity.ReadFailure{Op: op, Cause: err}
	}
	if len(out) == 0 {
		return nil, &entity.ReadFailure{Op: op, Cause: errEmptyResponse}
	}

	var tuples []askTuple
	if err := parsed.UnpackIntoInterface(&tuples, methodGetAllAsks, out); err != nil {
		g.logger.Warn("getAllAsks returned an unexpected shape", "pool", g.pool.Hex(), "bytes", len(out), "error", err)
		return nil, &entity.ReadFailure{Op: op, Cause: fmt.Errorf("decode: %w", err)}
	}

	asks, err = toAsks(tuples)
	if err != nil {
		return nil, &entity.ReadFailure{Op: op, Cause: err}
	}
	g.logger.Debug("Fetched asks", "pool", g.pool.Hex(), "count", len(asks))
	return asks, nil
}

func toAsks(tuples []askTuple) ([]entity.InvestmentAsk, error) {
	asks := make([]entity.InvestmentAsk, 0, len(tuples))
	seen := make(map[uint64]struct{}, len(tuples))
	for i, t := range tuples {
		if t.Id == nil || t.Amount == nil || t.Funded == nil {
			return nil, fmt.Errorf("ask #%d: missing field", i)
		}
		if !t.Id.IsUint64() {
			return nil, fmt.Errorf("ask #%d: id %s out of range", i, t.Id)
		}
		id := t.Id.Uint64()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("ask #%d: duplicate id %d", i, id)
		}
		seen[id] = struct{}{}

		asks = append(asks, entity.InvestmentAsk{
			ID:           id,
			Business:     t.Business,
			TargetAmount: new(big.Int).Set(t.Amount),
			RaisedAmount: new(big.Int).Set(t.Funded),
			Status:       entity.AskStatus(t.Status),
		})
	}
	slices.SortFunc(asks, func(a, b entity.InvestmentAsk) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return asks, nil
}

// GetBalance returns the native balance of address in base units.
func (g *ReadGateway) GetBalance(ctx context.Context, address common.Address) (balance *big.Int, err error) {
	const op = "get_balance"
	defer observe(op, time.Now(), &err)

	balance, err = g.reader.BalanceAt(ctx, address, nil)
	if err != nil {
		g.logger.Warn("Balance query failed", "address", address.Hex(), "error", err)
		return nil, &entity.ReadFailure{Op: op, Cause: err}
	}
	if balance == nil {
		return nil, &entity.ReadFailure{Op: op, Cause: errEmptyResponse}
	}
	return balance, nil
}

// ListInvestments returns the Invested events emitted for investor, oldest first.
func (g *ReadGateway) ListInvestments(ctx context.Context, investor common.Address) (investments []entity.Investment, err error) {
	const op = "list_investments"
	defer observe(op, time.Now(), &err)

	parsed, err := PoolABI()
	if err != nil {
		return nil, &entity.ReadFailure{Op: op, Cause: err}
	}
	event := parsed.Events[eventInvested]

	logs, err := g.reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{g.pool},
		Topics:    [][]common.Hash{{event.ID}, {common.BytesToHash(investor.Bytes())}},
	})
	if err != nil {
		g.logger.Warn("Invested log query failed", "investor", investor.Hex(), "error", err)
		return nil, &entity.ReadFailure{Op: op, Cause: err}
	}

	investments = make([]entity.Investment, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		if len(l.Topics) < 2 || l.Topics[0] != event.ID {
			return nil, &entity.ReadFailure{Op: op, Cause: fmt.Errorf("log %s/%d: unexpected topics", l.TxHash.Hex(), l.Index)}
		}
		var ev investedEvent
		if err := parsed.UnpackIntoInterface(&ev, eventInvested, l.Data); err != nil {
			return nil, &entity.ReadFailure{Op: op, Cause: fmt.Errorf("decode log %s/%d: %w", l.TxHash.Hex(), l.Index, err)}
		}
		if ev.AskId == nil || !ev.AskId.IsUint64() || ev.Amount == nil {
			return nil, &entity.ReadFailure{Op: op, Cause: fmt.Errorf("log %s/%d: invalid fields", l.TxHash.Hex(), l.Index)}
		}
		investments = append(investments, entity.Investment{
			Investor:    common.BytesToAddress(l.Topics[1].Bytes()),
			AskID:       ev.AskId.Uint64(),
			Amount:      ev.Amount,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
		})
	}
	slices.SortStableFunc(investments, func(a, b entity.Investment) int {
		switch {
		case a.BlockNumber < b.BlockNumber:
			return -1
		case a.BlockNumber > b.BlockNumber:
			return 1
		default:
			return 0
		}
	})
	return investments, nil
}

func observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = "error"
	}
	metrics.LedgerReads.WithLabelValues(op, result).Inc()
	metrics.LedgerReadDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

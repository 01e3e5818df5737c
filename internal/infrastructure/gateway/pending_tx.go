package gateway

import (
	"context"
	"sync"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTx tracks one submitted transaction until its outcome is known
// or the caller stops waiting. The first resolution wins.
type PendingTx struct {
	mu      sync.Mutex
	snap    entity.PendingTransaction
	receipt *entity.Receipt
	done    chan struct{}
	cancel  context.CancelFunc
}

var _ port.PendingTx = (*PendingTx)(nil)

func newPendingTx(id string, hash common.Hash, kind entity.TxKind, askID *uint64, submittedAt time.Time) *PendingTx {
	return &PendingTx{
		snap: entity.PendingTransaction{
			ID:          id,
			TxHash:      hash,
			Kind:        kind,
			State:       entity.TxSubmitted,
			AskID:       askID,
			SubmittedAt: submittedAt,
		},
		done:   make(chan struct{}),
		cancel: func() {},
	}
}

// Snapshot returns the current local view of the transaction.
func (p *PendingTx) Snapshot() entity.PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.snap
	if p.snap.AskID != nil {
		id := *p.snap.AskID
		out.AskID = &id
	}
	return out
}

// Done is closed once the transaction reaches a final local state.
func (p *PendingTx) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the outcome is known. If ctx ends first the transaction
// is marked abandoned locally; it may still land on the ledger.
func (p *PendingTx) Await(ctx context.Context) (*entity.Receipt, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.Abandon()
	}
	return p.result()
}

// Abandon stops tracking the transaction.
func (p *PendingTx) Abandon() {
	p.resolve(entity.TxAbandoned, nil, entity.ErrTransactionAbandoned)
}

func (p *PendingTx) result() (*entity.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap.State == entity.TxConfirmed {
		return p.receipt, nil
	}
	return p.receipt, p.snap.Err
}

func (p *PendingTx) resolve(state entity.TxState, receipt *entity.Receipt, err error) bool {
	p.mu.Lock()
	if p.snap.State.Final() {
		p.mu.Unlock()
		return false
	}
	p.snap.State = state
	p.snap.Err = err
	p.receipt = receipt
	cancel := p.cancel
	kind := p.snap.Kind
	p.mu.Unlock()

	cancel()
	metrics.TransactionOutcomes.WithLabelValues(kind.String(), state.String()).Inc()
	close(p.done)
	return true
}

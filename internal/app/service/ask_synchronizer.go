package service

import (
	"context"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// WriteResult is the outcome of a write followed by its dependent refresh.
type WriteResult struct {
	Tx      entity.PendingTransaction
	Receipt *entity.Receipt
	// RefreshErr is set when the write confirmed but the follow-up read failed.
	// The cached snapshot is then stale until the next successful refresh.
	RefreshErr error
}

// AskSynchronizer owns the cached ask snapshot and sequences reads after the writes they depend on.
type AskSynchronizer struct {
	reader  port.AskReader
	writer  port.AskWriter
	signers port.SignerProvider
	session port.SessionState
	events  *EventHub
	logger  port.Logger

	mu          sync.RWMutex
	asks        []entity.InvestmentAsk
	appliedSeq  uint64
	refreshedAt time.Time
	seq         atomic.Uint64

	pendingMu sync.Mutex
	pending   map[string]port.PendingTx
}

// NewAskSynchronizer creates a new AskSynchronizer. events may be nil.
func NewAskSynchronizer(
	reader port.AskReader,
	writer port.AskWriter,
	signers port.SignerProvider,
	session port.SessionState,
	events *EventHub,
	logger port.Logger,
) *AskSynchronizer {
	return &AskSynchronizer{
		reader:  reader,
		writer:  writer,
		signers: signers,
		session: session,
		events:  events,
		logger:  logger,
		pending: make(map[string]port.PendingTx),
	}
}

// Asks returns a copy of the cached snapshot.
func (s *AskSynchronizer) Asks() []entity.InvestmentAsk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entity.CloneAsks(s.asks)
}

// Ask returns one cached ask.
func (s *AskSynchronizer) Ask(id uint64) (entity.InvestmentAsk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.asks {
		if a.ID == id {
			return a.Clone(), true
		}
	}
	return entity.InvestmentAsk{}, false
}

// RefreshedAt reports when the snapshot was last replaced.
func (s *AskSynchronizer) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// Refresh replaces the snapshot wholesale and, when connected, refreshes the balance alongside.
// A result older than the snapshot already applied is dropped. On failure the
// previous snapshot stays in place.
func (s *AskSynchronizer) Refresh(ctx context.Context) ([]entity.InvestmentAsk, error) {
	seq := s.seq.Add(1)
	ws := s.session.Snapshot()

	var asks []entity.InvestmentAsk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		asks, err = s.reader.ListAsks(gctx)
		return err
	})
	if ws.Connected() {
		g.Go(func() error {
			s.updateBalance(gctx, ws)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("Ask refresh failed, keeping previous snapshot", "seq", seq, "error", err)
		return nil, err
	}

	s.mu.Lock()
	if seq < s.appliedSeq {
		current := entity.CloneAsks(s.asks)
		s.mu.Unlock()
		metrics.StaleRefreshesDiscarded.Inc()
		s.logger.Debug("Discarding stale ask refresh", "seq", seq)
		return current, nil
	}
	s.asks = asks
	s.appliedSeq = seq
	s.refreshedAt = time.Now()
	out := entity.CloneAsks(asks)
	s.mu.Unlock()

	metrics.AskSnapshotSize.Set(float64(len(out)))
	s.logger.Debug("Ask snapshot replaced", "seq", seq, "count", len(out))
	if s.events != nil {
		s.events.PublishAsks(out)
	}
	return out, nil
}

// RefreshBalance re-reads the connected account's balance.
func (s *AskSynchronizer) RefreshBalance(ctx context.Context) error {
	ws := s.session.Snapshot()
	if !ws.Connected() {
		return entity.ErrSignerUnavailable
	}
	return s.updateBalance(ctx, ws)
}

func (s *AskSynchronizer) updateBalance(ctx context.Context, ws entity.WalletSession) error {
	balance, err := s.reader.GetBalance(ctx, *ws.ChainAddress)
	if err != nil {
		s.logger.Warn("Balance refresh failed", "address", ws.ChainAddress.Hex(), "error", err)
		return err
	}
	if !s.session.UpdateBalance(ws.Generation, balance) {
		s.logger.Debug("Dropping balance for a session that moved on", "generation", ws.Generation)
	}
	return nil
}

// MyInvestments lists the connected account's investments.
func (s *AskSynchronizer) MyInvestments(ctx context.Context) ([]entity.Investment, error) {
	ws := s.session.Snapshot()
	if !ws.Connected() {
		return nil, entity.ErrSignerUnavailable
	}
	return s.reader.ListInvestments(ctx, *ws.ChainAddress)
}

// Fund invests amount base units in askID and, once confirmed, refreshes the snapshot.
func (s *AskSynchronizer) Fund(ctx context.Context, askID uint64, amount *big.Int) (WriteResult, error) {
	signer, ok := s.signers.GetSigner()
	if !ok {
		return WriteResult{}, entity.ErrSignerUnavailable
	}
	p, err := s.writer.Invest(ctx, signer, askID, amount)
	if err != nil {
		return WriteResult{}, err
	}
	return s.follow(ctx, p, s.refreshAll)
}

// CreateAsk creates a new ask and, once confirmed, refreshes the snapshot.
func (s *AskSynchronizer) CreateAsk(ctx context.Context, params entity.CreateAskParams) (WriteResult, error) {
	signer, ok := s.signers.GetSigner()
	if !ok {
		return WriteResult{}, entity.ErrSignerUnavailable
	}
	p, err := s.writer.CreateAsk(ctx, signer, params)
	if err != nil {
		return WriteResult{}, err
	}
	return s.follow(ctx, p, s.refreshAll)
}

// MintToken mints through the token service; only the balance is refreshed afterwards.
func (s *AskSynchronizer) MintToken(ctx context.Context, params entity.MintParams) (WriteResult, error) {
	signer, ok := s.signers.GetSigner()
	if !ok {
		return WriteResult{}, entity.ErrSignerUnavailable
	}
	p, err := s.writer.MintToken(ctx, signer, params)
	if err != nil {
		return WriteResult{}, err
	}
	return s.follow(ctx, p, s.RefreshBalance)
}

// TransferToken transfers through the token service; only the balance is refreshed afterwards.
func (s *AskSynchronizer) TransferToken(ctx context.Context, params entity.TransferParams) (WriteResult, error) {
	signer, ok := s.signers.GetSigner()
	if !ok {
		return WriteResult{}, entity.ErrSignerUnavailable
	}
	p, err := s.writer.TransferToken(ctx, signer, params)
	if err != nil {
		return WriteResult{}, err
	}
	return s.follow(ctx, p, s.RefreshBalance)
}

func (s *AskSynchronizer) refreshAll(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	return err
}

// follow waits for p and runs after only once p is Confirmed.
func (s *AskSynchronizer) follow(ctx context.Context, p port.PendingTx, after func(context.Context) error) (WriteResult, error) {
	snap := p.Snapshot()
	s.track(snap.ID, p)
	defer s.untrack(snap.ID)
	s.publishTx(snap)

	receipt, err := p.Await(ctx)
	res := WriteResult{Tx: p.Snapshot(), Receipt: receipt}
	s.publishTx(res.Tx)
	if err != nil {
		s.logger.Warn("Write did not confirm", "kind", res.Tx.Kind.String(), "tx_hash", res.Tx.TxHash.Hex(), "state", res.Tx.State.String(), "error", err)
		return res, err
	}

	if res.RefreshErr = after(ctx); res.RefreshErr != nil {
		s.logger.Warn("Refresh after confirmed write failed", "kind", res.Tx.Kind.String(), "tx_hash", res.Tx.TxHash.Hex(), "error", res.RefreshErr)
	}
	return res, nil
}

// Pending lists writes still awaiting an outcome, oldest first.
func (s *AskSynchronizer) Pending() []entity.PendingTransaction {
	s.pendingMu.Lock()
	out := make([]entity.PendingTransaction, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.Snapshot())
	}
	s.pendingMu.Unlock()

	slices.SortFunc(out, func(a, b entity.PendingTransaction) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return out
}

func (s *AskSynchronizer) track(id string, p port.PendingTx) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[id] = p
}

func (s *AskSynchronizer) untrack(id string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, id)
}

func (s *AskSynchronizer) publishTx(tx entity.PendingTransaction) {
	if s.events != nil {
		s.events.PublishTransaction(tx)
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/metrics"
)

// DefaultPairingTimeout bounds a handshake when no timeout is configured.
const DefaultPairingTimeout = 60 * time.Second

var errNoSigner = errors.New("wallet returned no signing capability")

// Options configures a Store.
type Options struct {
	Metadata         entity.AppMetadata
	PairingTimeout   time.Duration
	FailedResetAfter time.Duration
}

// attempt is the single-shot result of one connect. done is closed exactly once,
// either by the pairing goroutine or by Disconnect.
type attempt struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	result entity.WalletSession
	err    error
}

type listener struct {
	id uint64
	fn func(entity.WalletSession)
}

// Store owns the wallet session. Every pairing is tagged with the generation that
// started it and its result is dropped if the generation moved on meanwhile.
type Store struct {
	pairer port.Pairer
	opts   Options
	logger port.Logger

	mu         sync.Mutex
	state      entity.WalletSession
	signer     port.Signer
	closeFn    func()
	inflight   *attempt
	stop       chan struct{}
	resetTimer *time.Timer
	version    uint64
	listeners  []listener
	nextID     uint64

	notifyMu   sync.Mutex
	delivered  uint64
	lastStatus entity.SessionStatus
}

// NewStore creates a Store in the Disconnected state.
func NewStore(pairer port.Pairer, opts Options, logger port.Logger) *Store {
	if opts.PairingTimeout <= 0 {
		opts.PairingTimeout = DefaultPairingTimeout
	}
	return &Store{
		pairer: pairer,
		opts:   opts,
		logger: logger,
		state:  entity.WalletSession{Status: entity.SessionDisconnected},
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() entity.WalletSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Account returns the connected identity, if any.
func (s *Store) Account() (entity.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected() {
		return entity.Account{}, false
	}
	return entity.Account{AccountID: s.state.AccountID, Address: *s.state.ChainAddress}, true
}

// Connect pairs with the wallet. While an attempt is in flight further calls join it
// instead of starting another one. If ctx ends first the attempt keeps running and
// Connect returns the current snapshot with ctx's error.
//
// From Failed, Connect starts a new attempt directly: listeners see Failed
// followed by Connecting, with no Disconnected in between.
func (s *Store) Connect(ctx context.Context) (entity.WalletSession, error) {
	s.mu.Lock()
	switch s.state.Status {
	case entity.SessionConnected:
		snap := s.state.Clone()
		s.mu.Unlock()
		return snap, nil
	case entity.SessionConnecting:
		att := s.inflight
		s.mu.Unlock()
		s.logger.Debug("Joining in-flight wallet pairing", "generation", att.gen)
		return s.wait(ctx, att)
	}

	s.stopResetTimerLocked()
	s.state.Generation++
	gen := s.state.Generation
	pairCtx, cancel := context.WithTimeout(context.Background(), s.opts.PairingTimeout)
	att := &attempt{gen: gen, cancel: cancel, done: make(chan struct{})}
	s.inflight = att
	s.state = entity.WalletSession{Status: entity.SessionConnecting, Generation: gen}
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Info("Wallet pairing started", "generation", gen, "app", s.opts.Metadata.Name)
	s.notify(snap, v)
	go s.runPairing(pairCtx, att)
	return s.wait(ctx, att)
}

func (s *Store) wait(ctx context.Context, att *attempt) (entity.WalletSession, error) {
	select {
	case <-att.done:
		return att.result.Clone(), att.err
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

func (s *Store) runPairing(ctx context.Context, att *attempt) {
	defer att.cancel()

	pairing, err := s.pairer.Pair(ctx, s.opts.Metadata)
	if err == nil && (pairing == nil || pairing.Signer == nil) {
		if pairing != nil && pairing.Close != nil {
			pairing.Close()
		}
		err = errNoSigner
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("pairing timed out after %s: %w", s.opts.PairingTimeout, err)
	}

	s.mu.Lock()
	if s.inflight != att || s.state.Generation != att.gen {
		s.mu.Unlock()
		metrics.StalePairingEvents.Inc()
		s.logger.Debug("Discarding stale pairing result", "generation", att.gen, "error", err)
		if err == nil && pairing.Close != nil {
			pairing.Close()
		}
		return
	}
	s.inflight = nil

	if err != nil {
		failure := &entity.PairingFailure{Cause: err}
		s.state = entity.WalletSession{Status: entity.SessionFailed, Generation: att.gen, LastError: failure}
		s.armResetTimerLocked(att.gen)
		snap, v := s.commitLocked()
		att.result, att.err = snap, failure
		s.mu.Unlock()

		s.logger.Warn("Wallet pairing failed", "generation", att.gen, "error", err)
		s.notify(snap, v)
		close(att.done)
		return
	}

	addr := pairing.Address
	s.state = entity.WalletSession{
		Status:       entity.SessionConnected,
		Generation:   att.gen,
		AccountID:    pairing.AccountID,
		ChainAddress: &addr,
	}
	s.signer = pairing.Signer
	s.closeFn = pairing.Close
	stop := make(chan struct{})
	s.stop = stop
	snap, v := s.commitLocked()
	att.result = snap
	s.mu.Unlock()

	s.logger.Info("Wallet connected", "generation", att.gen, "account", pairing.AccountID, "address", addr.Hex())
	s.notify(snap, v)
	close(att.done)

	if pairing.Revoked != nil {
		go s.watchRevoke(att.gen, pairing.Revoked, stop)
	}
}

func (s *Store) watchRevoke(gen uint64, revoked <-chan struct{}, stop <-chan struct{}) {
	select {
	case <-revoked:
	case <-stop:
		return
	}

	s.mu.Lock()
	if s.state.Generation != gen || s.state.Status != entity.SessionConnected {
		s.mu.Unlock()
		return
	}
	closeFn, snap, v := s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("Wallet revoked the pairing", "generation", gen)
	if closeFn != nil {
		closeFn()
	}
	s.notify(snap, v)
}

// Disconnect returns the session to Disconnected from any state, releasing the signer
// and abandoning any in-flight pairing. It does not block on the wallet.
func (s *Store) Disconnect() {
	s.mu.Lock()
	prev := s.state.Status
	att := s.inflight
	s.inflight = nil
	closeFn, snap, v := s.resetLocked()
	if att != nil {
		att.result = snap
		att.err = &entity.PairingFailure{Cause: entity.ErrSessionDisconnected}
	}
	s.mu.Unlock()

	if att != nil {
		att.cancel()
		close(att.done)
	}
	if closeFn != nil {
		closeFn()
	}
	if prev != entity.SessionDisconnected {
		s.logger.Info("Wallet disconnected", "from", prev.String(), "generation", snap.Generation)
	}
	s.notify(snap, v)
}

// resetLocked moves to Disconnected under a new generation and returns the pairing release func.
func (s *Store) resetLocked() (func(), entity.WalletSession, uint64) {
	closeFn := s.closeFn
	s.signer = nil
	s.closeFn = nil
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.stopResetTimerLocked()
	s.state = entity.WalletSession{Status: entity.SessionDisconnected, Generation: s.state.Generation + 1}
	snap, v := s.commitLocked()
	return closeFn, snap, v
}

// UpdateBalance records a balance read for generation gen. It is ignored if the
// session moved on since the read started.
func (s *Store) UpdateBalance(gen uint64, balance *big.Int) bool {
	s.mu.Lock()
	if s.state.Generation != gen || !s.state.Connected() || balance == nil {
		s.mu.Unlock()
		return false
	}
	s.state.Balance = new(big.Int).Set(balance)
	snap, v := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap, v)
	return true
}

// OnChange registers fn to receive every new session snapshot, in order.
// fn runs on the goroutine that caused the change; it must not block or call
// back into the Store synchronously.
func (s *Store) OnChange(fn func(entity.WalletSession)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// signerFor returns the raw signer if gen is still the connected generation.
func (s *Store) signerFor(gen uint64) (port.Signer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation != gen || s.state.Status != entity.SessionConnected || s.signer == nil {
		return nil, false
	}
	return s.signer, true
}

func (s *Store) currentSigner() (port.Signer, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != entity.SessionConnected || s.signer == nil {
		return nil, 0, false
	}
	return s.signer, s.state.Generation, true
}

func (s *Store) armResetTimerLocked(gen uint64) {
	if s.opts.FailedResetAfter <= 0 {
		return
	}
	s.resetTimer = time.AfterFunc(s.opts.FailedResetAfter, func() {
		s.mu.Lock()
		if s.state.Status != entity.SessionFailed || s.state.Generation != gen {
			s.mu.Unlock()
			return
		}
		s.resetTimer = nil
		s.state = entity.WalletSession{Status: entity.SessionDisconnected, Generation: gen}
		snap, v := s.commitLocked()
		s.mu.Unlock()

		s.logger.Debug("Failed session reset", "generation", gen)
		s.notify(snap, v)
	})
}

func (s *Store) stopResetTimerLocked() {
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}

func (s *Store) commitLocked() (entity.WalletSession, uint64) {
	s.version++
	return s.state.Clone(), s.version
}

// notify delivers snap to listeners unless a newer snapshot was already delivered.
func (s *Store) notify(snap entity.WalletSession, v uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if v <= s.delivered {
		return
	}
	s.delivered = v

	if snap.Status != s.lastStatus {
		s.lastStatus = snap.Status
		metrics.SessionTransitions.WithLabelValues(snap.Status.String()).Inc()
	}
	if snap.Status == entity.SessionConnected {
		metrics.SessionConnected.Set(1)
	} else {
		metrics.SessionConnected.Set(0)
	}

	s.mu.Lock()
	listeners := make([]listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap.Clone())
	}
}

package service

import (
	"context"
	"sync"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"
)

const defaultBalanceTimeout = 15 * time.Second

// BalanceTracker loads the balance once per connected session.
type BalanceTracker struct {
	reader  port.AskReader
	session port.SessionState
	timeout time.Duration
	logger  port.Logger

	mu      sync.Mutex
	lastGen uint64
	wg      sync.WaitGroup
}

// NewBalanceTracker creates a new BalanceTracker.
func NewBalanceTracker(reader port.AskReader, session port.SessionState, timeout time.Duration, logger port.Logger) *BalanceTracker {
	if timeout <= 0 {
		timeout = defaultBalanceTimeout
	}
	return &BalanceTracker{
		reader:  reader,
		session: session,
		timeout: timeout,
		logger:  logger,
	}
}

// HandleSession is meant to be registered with the session store's OnChange.
// It does not block; the read runs on its own goroutine.
func (t *BalanceTracker) HandleSession(ws entity.WalletSession) {
	if !ws.Connected() {
		return
	}
	t.mu.Lock()
	if ws.Generation == t.lastGen {
		t.mu.Unlock()
		return
	}
	t.lastGen = ws.Generation
	t.mu.Unlock()

	addr := *ws.ChainAddress
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		balance, err := t.reader.GetBalance(ctx, addr)
		if err != nil {
			t.logger.Warn("Initial balance read failed", "address", addr.Hex(), "error", err)
			return
		}
		if t.session.UpdateBalance(ws.Generation, balance) {
			t.logger.Debug("Balance loaded", "address", addr.Hex(), "generation", ws.Generation)
		}
	}()
}

// Wait blocks until in-flight balance reads finish.
func (t *BalanceTracker) Wait() {
	t.wg.Wait()
}

package service

import (
	"sync"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/domain/entity"

	"github.com/google/uuid"
)

// EventType names what changed.
type EventType string

const (
	EventSession     EventType = "session"
	EventAsks        EventType = "asks"
	EventTransaction EventType = "transaction"
)

// Event is a change pushed to subscribers. Exactly one payload field is set.
type Event struct {
	Type        EventType
	At          time.Time
	Session     *entity.WalletSession
	Asks        []entity.InvestmentAsk
	Transaction *entity.PendingTransaction
}

const defaultSubscriberBuffer = 64

type subscriber struct {
	ch      chan Event
	dropped int
}

// EventHub fans events out to subscribers. A subscriber that falls behind loses
// events rather than blocking publishers.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
	logger port.Logger
}

// NewEventHub creates a new EventHub.
func NewEventHub(logger port.Logger) *EventHub {
	return &EventHub{
		subs:   make(map[string]*subscriber),
		logger: logger,
	}
}

// Subscribe registers a subscriber and returns its id, its channel and a cancel func.
func (h *EventHub) Subscribe(buffer int) (string, <-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	id := uuid.NewString()
	sub := &subscriber{ch: make(chan Event, buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return id, sub.ch, func() {}
	}
	h.subs[id] = sub
	h.mu.Unlock()

	h.logger.Debug("Event subscriber registered", "subscriber_id", id)
	return id, sub.ch, func() { h.unsubscribe(id) }
}

func (h *EventHub) unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Debug("Event subscriber removed", "subscriber_id", id, "dropped", sub.dropped)
	}
}

// Publish delivers ev to every subscriber without blocking.
func (h *EventHub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			h.logger.Warn("Event subscriber is behind, dropping event", "subscriber_id", id, "type", string(ev.Type))
		}
	}
}

// PublishSession publishes a session snapshot.
func (h *EventHub) PublishSession(ws entity.WalletSession) {
	snap := ws.Clone()
	h.Publish(Event{Type: EventSession, Session: &snap})
}

// PublishAsks publishes an ask snapshot.
func (h *EventHub) PublishAsks(asks []entity.InvestmentAsk) {
	h.Publish(Event{Type: EventAsks, Asks: entity.CloneAsks(asks)})
}

// PublishTransaction publishes a transaction state.
func (h *EventHub) PublishTransaction(tx entity.PendingTransaction) {
	h.Publish(Event{Type: EventTransaction, Transaction: &tx})
}

// Subscribers returns the number of active subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

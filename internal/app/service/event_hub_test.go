package service

import (
	"testing"

	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_FanOut(t *testing.T) {
	hub := NewEventHub(logger.NewNop())
	id1, ch1, cancel1 := hub.Subscribe(4)
	id2, ch2, cancel2 := hub.Subscribe(4)
	defer cancel1()
	defer cancel2()
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, hub.Subscribers())

	hub.PublishSession(entity.WalletSession{Status: entity.SessionConnecting, Generation: 3})

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, EventSession, ev.Type)
		require.NotNil(t, ev.Session)
		assert.Equal(t, uint64(3), ev.Session.Generation)
		assert.False(t, ev.At.IsZero())
	}
}

func TestEventHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewEventHub(logger.NewNop())
	_, ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.PublishTransaction(entity.PendingTransaction{ID: "a"})
	hub.PublishTransaction(entity.PendingTransaction{ID: "b"})

	ev := <-ch
	assert.Equal(t, "a", ev.Transaction.ID)
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestEventHub_CancelAndClose(t *testing.T) {
	hub := NewEventHub(logger.NewNop())
	_, ch, cancel := hub.Subscribe(1)
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers())

	_, ch2, _ := hub.Subscribe(1)
	hub.Close()
	_, open = <-ch2
	assert.False(t, open)

	_, ch3, cancel3 := hub.Subscribe(1)
	_, open = <-ch3
	assert.False(t, open)
	cancel3()
}

package realtime

import (
	"context"
	"testing"
	"time"

	"threadspire/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(logger.Nop())
	a, cancelA := hub.Subscribe("reactions:t1")
	b, cancelB := hub.Subscribe("reactions:t1")
	other, cancelOther := hub.Subscribe("reactions:t2")
	defer cancelB()
	defer cancelOther()

	require.NoError(t, hub.Publish(context.Background(), "reactions:t1", []byte(`{"🔥":1}`)))
	assert.Equal(t, `{"🔥":1}`, string(receive(t, a)))
	assert.Equal(t, `{"🔥":1}`, string(receive(t, b)))
	select {
	case <-other:
		t.Fatal("unrelated key received a message")
	default:
	}

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers("reactions:t1"))
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(logger.Nop())
	ch, cancel := hub.Subscribe("k")
	defer cancel()
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Broadcast("k", []byte("x"))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestRedisBrokerForwards(t *testing.T) {
	mr := miniredis.RunT(t)
	hub := NewHub(logger.Nop())
	broker, err := NewRedisBroker("redis://"+mr.Addr(), "test:realtime", hub, logger.Nop())
	require.NoError(t, err)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, broker.StartForwarder(ctx))

	ch, unsubscribe := broker.Subscribe("reactions:t1")
	defer unsubscribe()

	require.NoError(t, broker.Publish(ctx, "reactions:t1", []byte(`{"💡":2}`)))
	assert.JSONEq(t, `{"💡":2}`, string(receive(t, ch)))
}

func TestRedisBrokerBadURL(t *testing.T) {
	_, err := NewRedisBroker("not-a-url", "", NewHub(logger.Nop()), logger.Nop())
	assert.Error(t, err)
}

package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-meet/internal/config"
)

func newTestHub(buffer int) *Hub {
	return NewHub(config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 1 << 16,
		SendBuffer:     buffer,
	})
}

func recv(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.Send:
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestNewHub_DefaultBuffer(t *testing.T) {
	h := NewHub(config.WebSocketConfig{})
	c := NewClient(context.Background(), h, nil, "c1", "10.0.0.1")
	assert.Equal(t, 256, cap(c.Send))
}

func TestHub_RegisterGetUnregister(t *testing.T) {
	h := newTestHub(4)
	c := NewClient(context.Background(), h, nil, "c1", "10.0.0.1")

	h.Register(c)
	got, ok := h.Get("c1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, h.Count())

	h.Unregister(c)
	_, ok = h.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count())

	_, open := <-c.Send
	assert.False(t, open, "send channel should be closed")

	assert.NotPanics(t, func() { h.Unregister(c) })
}

func TestHub_UnregisterIgnoresStaleClient(t *testing.T) {
	h := newTestHub(4)
	old := NewClient(context.Background(), h, nil, "c1", "")
	h.Register(old)
	fresh := NewClient(context.Background(), h, nil, "c1", "")
	h.Register(fresh)

	h.Unregister(old)
	got, ok := h.Get("c1")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestHub_SendToClient(t *testing.T) {
	h := newTestHub(4)
	c := NewClient(context.Background(), h, nil, "c1", "")
	h.Register(c)

	ok, err := h.SendToClient("c1", map[string]string{"type": "pong"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pong", recv(t, c)["type"])

	ok, err = h.SendToClient("ghost", map[string]string{"type": "pong"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.SendToClient("c1", make(chan int))
	assert.Error(t, err)
}

func TestHub_SendToClientsSkipsUnknown(t *testing.T) {
	h := newTestHub(4)
	a := NewClient(context.Background(), h, nil, "a", "")
	b := NewClient(context.Background(), h, nil, "b", "")
	h.Register(a)
	h.Register(b)

	require.NoError(t, h.SendToClients([]string{"a", "ghost", "b"}, map[string]string{"type": "roster"}))
	assert.Equal(t, "roster", recv(t, a)["type"])
	assert.Equal(t, "roster", recv(t, b)["type"])
	assert.NoError(t, h.SendToClients(nil, map[string]string{}))
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := newTestHub(1)
	slow := NewClient(context.Background(), h, nil, "slow", "")
	fast := NewClient(context.Background(), h, nil, "fast", "")
	h.Register(slow)
	h.Register(fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = h.SendToClients([]string{"slow", "fast"}, map[string]int{"i": i})
			<-fast.Send
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, slow.Send, 1)
}

func TestClient_CloseWithoutConn(t *testing.T) {
	h := newTestHub(1)
	c := NewClient(context.Background(), h, nil, "c1", "")
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}

func TestHub_ConcurrentSendAndUnregister(t *testing.T) {
	h := newTestHub(8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		c := NewClient(context.Background(), h, nil, string(rune('A'+i)), "")
		h.Register(c)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = h.SendToClient(c.ID, map[string]int{"j": j})
			}
		}()
		go func() {
			defer wg.Done()
			h.Unregister(c)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}

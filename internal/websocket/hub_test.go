package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"lanchat/internal/database"
	"lanchat/internal/models"
	"lanchat/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, id string, buffer int) *Client {
	return &Client{id: id, address: "10.0.0.1", hub: h, send: make(chan []byte, buffer)}
}

func startHub(t *testing.T, purgeInterval time.Duration, store *database.FileStore, opts services.Options) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil, purgeInterval)
	svc := services.NewChatService(hub, store, store, opts)
	svc.Load(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx, svc)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub, cancel
}

func receive(t *testing.T, c *Client) (models.OutgoingEnvelope, bool) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			return models.OutgoingEnvelope{}, false
		}
		var env models.OutgoingEnvelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env, true
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return models.OutgoingEnvelope{}, false
	}
}

func TestClient_FullQueueClosesTheClient(t *testing.T) {
	c := newTestClient(nil, "slow", 1)

	require.True(t, c.enqueue([]byte(`{"event":"one"}`)))
	assert.False(t, c.enqueue([]byte(`{"event":"two"}`)))
	assert.False(t, c.enqueue([]byte(`{"event":"three"}`)))

	first, ok := <-c.send
	require.True(t, ok)
	assert.JSONEq(t, `{"event":"one"}`, string(first))
	_, ok = <-c.send
	assert.False(t, ok)

	// A second close is a no-op.
	c.closeSend()
}

func TestHub_RequestsAreAnsweredInOrder(t *testing.T) {
	store, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)
	hub, _ := startHub(t, 0, store, services.Options{})
	c := newTestClient(hub, "c1", 8)

	require.True(t, hub.Register(c))
	data, err := json.Marshal(models.RoomRequest{RoomID: "missing"})
	require.NoError(t, err)
	require.True(t, hub.request(c, models.Envelope{Event: models.EventGetRooms}))
	require.True(t, hub.request(c, models.Envelope{Event: models.EventJoinRoom, Data: data}))

	env, ok := receive(t, c)
	require.True(t, ok)
	assert.Equal(t, models.EventRoomsList, env.Event)

	env, ok = receive(t, c)
	require.True(t, ok)
	assert.Equal(t, models.EventJoinRoomFailed, env.Event)
	assert.Equal(t, map[string]any{"code": "identity_required", "message": services.ErrIdentityRequired.Message}, env.Data)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	store, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)
	hub, cancel := startHub(t, 0, store, services.Options{})
	c := newTestClient(hub, "c1", 8)

	require.True(t, hub.Register(c))
	require.True(t, hub.request(c, models.Envelope{Event: models.EventGetRooms}))
	_, ok := receive(t, c)
	require.True(t, ok)

	cancel()

	_, ok = receive(t, c)
	assert.False(t, ok)
	require.Eventually(t, func() bool {
		return !hub.Register(newTestClient(hub, "late", 1))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHub_PurgeTickerRemovesExpiredRooms(t *testing.T) {
	store, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)

	deleted := time.Now().Add(-services.DefaultRestoreWindow - time.Hour)
	require.NoError(t, store.SaveRooms(context.Background(), map[string]*models.Room{
		"old":  {ID: "old", Name: "Old", OwnerID: "u1", DeletedAt: &deleted},
		"live": {ID: "live", Name: "Live", OwnerID: "u1"},
	}))

	startHub(t, 10*time.Millisecond, store, services.Options{})

	require.Eventually(t, func() bool {
		rooms, err := store.LoadRooms(context.Background())
		if err != nil {
			return false
		}
		_, stale := rooms["old"]
		_, live := rooms["live"]
		return !stale && live
	}, 5*time.Second, 20*time.Millisecond)
}

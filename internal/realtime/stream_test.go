package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrame(t *testing.T, w http.ResponseWriter, event, data string) {
	t.Helper()
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.(http.Flusher).Flush()
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	c := testClient(t, "/inbox", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inbox.json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("access_token"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		sseHeaders(w)

		writeFrame(t, w, "put", `{"path": "/lead1", "data": {"entity_id": 17332060}}`)
		writeFrame(t, w, "keep-alive", "null")
		writeFrame(t, w, "patch", `{"path": "/lead1", "data": {"messages": "hello"}}`)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "", 8)
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, EventPut, first.Type)
	assert.Equal(t, "/lead1", first.Path)
	data, ok := first.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(17332060), data["entity_id"])

	// The keep-alive frame is swallowed; next delivery is the patch.
	second := <-events
	assert.Equal(t, EventPatch, second.Type)
	assert.Equal(t, "/lead1", second.Path)

	cancel()
	for range events {
	} // drains until the consume loop closes the channel
}

func TestSubscribe_InitialFailureIsSynchronous(t *testing.T) {
	c := testClient(t, "/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized request.", http.StatusUnauthorized)
	})

	_, err := c.Subscribe(context.Background(), "", 8)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestSubscribe_ReconnectsAfterDrop(t *testing.T) {
	var connCount atomic.Int32
	c := testClient(t, "/", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)

		if connCount.Add(1) == 1 {
			writeFrame(t, w, "put", `{"path": "/a", "data": 1}`)
			return // server drops the connection
		}
		writeFrame(t, w, "put", `{"path": "/b", "data": 2}`)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "", 8)
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, "/a", first.Path)

	second := <-events
	assert.Equal(t, "/b", second.Path, "event from the reconnected stream")
	assert.Equal(t, int32(2), connCount.Load())

	cancel()
	for range events {
	}
}

func TestSubscribe_AuthRevokedForcesReconnect(t *testing.T) {
	var connCount atomic.Int32
	c := testClient(t, "/", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)

		if connCount.Add(1) == 1 {
			writeFrame(t, w, "auth_revoked", `"token expired"`)
			<-r.Context().Done() // client should close this connection itself
			return
		}
		writeFrame(t, w, "put", `{"path": "/after", "data": true}`)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "", 8)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "/after", ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no event after auth_revoked reconnect")
	}

	cancel()
	for range events {
	}
}

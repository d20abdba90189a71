package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/transport"
)

// startServer returns a ws:// url and a channel of received text messages.
func startServer(t *testing.T) (string, <-chan string) {
	t.Helper()
	received := make(chan string, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage {
				received <- string(data)
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestSend_TextMessages(t *testing.T) {
	url, received := startServer(t)
	ctx := context.Background()

	tr, err := Factory(ctx, transport.Settings{WebSocketURL: url})
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send(ctx, "vcan0", frame.Frame{Identifier: "123", Payload: "00AB"}))
	require.NoError(t, tr.Send(ctx, "vcan0", frame.Frame{Identifier: "123", Payload: "00AC"}))

	for _, want := range []string{"123#00AB", "123#00AC"} {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestCheck_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := New("ws://127.0.0.1:1/bus").Check(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransportUnavailable)
}

func TestSend_UnreachableIsTransient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := New("ws://127.0.0.1:1/bus").Send(ctx, "vcan0", frame.Frame{Identifier: "123", Payload: "00"})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

func TestClose_WithoutConnect(t *testing.T) {
	tr := New("ws://127.0.0.1:1/bus")
	assert.NoError(t, tr.Close())
	assert.Equal(t, "websocket", tr.Name())
}

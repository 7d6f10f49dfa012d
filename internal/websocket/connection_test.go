package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatwire/pkg/types"
)

// newConnPair upgrades a loopback websocket and wraps the server side.
func newConnPair(t *testing.T, sendBuffer int) (*Connection, *websocket.Conn) {
	t.Helper()
	connCh := make(chan *Connection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn := NewConnection(raw, sendBuffer, time.Second, zap.NewNop())
		connCh <- conn
		// Hold the handler open until the connection dies.
		for {
			if _, err := conn.Read(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = client.Close() })

	conn := <-connCh
	t.Cleanup(func() { _ = conn.Close() })
	return conn, client
}

func TestSendDeliversFrame(t *testing.T) {
	conn, client := newConnPair(t, 16)

	require.NoError(t, conn.Send(types.NewSystemEnvelope("ping")))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var env types.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, types.KindSystem, env.Type)
	require.Equal(t, "ping", env.Content)
}

func TestSendAfterCloseFails(t *testing.T) {
	conn, _ := newConnPair(t, 16)
	require.True(t, conn.IsOpen())

	require.NoError(t, conn.Close())
	require.False(t, conn.IsOpen())
	require.ErrorIs(t, conn.Send(types.NewSystemEnvelope("too late")), ErrConnectionClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, _ := newConnPair(t, 16)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}

func TestPeerCloseEndsRead(t *testing.T) {
	conn, client := newConnPair(t, 16)
	require.NoError(t, client.Close())

	_, err := conn.Read()
	require.Error(t, err)
}

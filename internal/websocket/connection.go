// Package websocket carries the realtime core over gorilla/websocket:
// a connection wrapper that serializes writes, and the admission
// handler that registers connections and pumps their envelopes through
// the router in arrival order.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatwire/pkg/types"
)

// Connection wraps one websocket and implements interfaces.Channel.
// All writes go through a single writer goroutine; Send never blocks
// the caller, so a slow recipient cannot stall a group fanout.
type Connection struct {
	id      uuid.UUID
	conn    *websocket.Conn
	writeCh chan []byte

	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	log          *zap.Logger
}

// NewConnection wraps conn and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration, log *zap.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New(),
		conn:         conn,
		writeCh:      make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		log:          log,
	}
	go c.writeLoop()
	return c
}

// ID identifies this physical connection in logs.
func (c *Connection) ID() uuid.UUID { return c.id }

// writeLoop owns the raw conn's write side and its final close. On
// shutdown it drains frames queued before Close, so a last notice
// (like a kick) still reaches the peer.
func (c *Connection) writeLoop() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data := <-c.writeCh:
			if !c.write(data) {
				return
			}
		case <-c.ctx.Done():
			c.drainPending()
			return
		}
	}
}

func (c *Connection) drainPending() {
	for {
		select {
		case data := <-c.writeCh:
			if !c.write(data) {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("write failed, closing connection",
			zap.String("conn_id", c.id.String()),
			zap.Error(err))
		return false
	}
	return true
}

// Send marshals env and queues it for the writer. It fails immediately
// when the connection is closed or the outbound buffer is full; the
// caller treats either as "recipient unreachable now".
func (c *Connection) Send(env *types.Envelope) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Read returns the next text frame from the peer.
func (c *Connection) Read() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

// IsOpen reports whether the connection has not been closed yet.
func (c *Connection) IsOpen() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Close signals shutdown exactly once. The writer drains its queue and
// closes the raw conn, which also unblocks any pending Read.
func (c *Connection) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

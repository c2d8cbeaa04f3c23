package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Buffered events per direction.
	streamSize = 100
)

// Conn is the transport handle for one client connection. The gateway, hub
// and room fan-out only ever talk to this interface; the websocket stays at
// the edge.
type Conn interface {
	// Send queues an event for delivery without blocking. Events for a
	// connection whose write buffer is full are dropped.
	Send(e *Event)
	// Receive yields inbound events until the connection closes.
	Receive() <-chan *Event
	// Close initiates teardown. Safe to call more than once.
	Close()
	// Done is closed once the connection is gone.
	Done() <-chan struct{}
}

// WSConn runs the usual pair of loops over a gorilla websocket: a read
// loop feeding Receive and a write loop draining Send, with ping/pong
// keepalive.
type WSConn struct {
	conn        *websocket.Conn
	writeStream chan *Event
	readStream  chan *Event
	done        chan struct{}
	closeOnce   sync.Once
	ticker      *time.Ticker
	logger      *slog.Logger
}

func newWSConn(conn *websocket.Conn, logger *slog.Logger) *WSConn {
	return &WSConn{
		conn:        conn,
		writeStream: make(chan *Event, streamSize),
		readStream:  make(chan *Event, streamSize),
		done:        make(chan struct{}),
		ticker:      time.NewTicker(pingPeriod),
		logger:      logger.With(slog.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *WSConn) Send(e *Event) {
	select {
	case <-c.done:
	case c.writeStream <- e:
	default:
		c.logger.Warn("write stream full, dropping event", slog.String("type", e.Type))
	}
}

func (c *WSConn) Receive() <-chan *Event {
	return c.readStream
}

func (c *WSConn) Done() <-chan struct{} {
	return c.done
}

func (c *WSConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *WSConn) readLoop() {
	defer func() {
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		format, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(fmt.Sprintf("expected close: %v", err))
				return
			}
			if websocket.IsUnexpectedCloseError(err) {
				c.logger.Error(fmt.Sprintf("unexpected close: %v", err))
				return
			}
			c.logger.Error(fmt.Sprintf("NextReader: %v", err))
			return
		}

		if format != websocket.TextMessage {
			c.logger.Error(fmt.Sprintf("unexpected message format: %v", format))
			continue
		}

		var event Event
		if err := DecodeEvent(r, &event); err != nil {
			c.logger.Error(err.Error())
			continue
		}

		select {
		case c.readStream <- &event:
		case <-c.done:
			return
		}
	}
}

func (c *WSConn) writeLoop() {
	defer func() {
		c.ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e := <-c.writeStream:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Error(fmt.Sprintf("NextWriter: %v", err))
				return
			}
			if err := EncodeEvent(w, e); err != nil {
				c.logger.Error(err.Error())
			}
			w.Close()
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error(fmt.Sprintf("writing ping: %v", err))
				return
			}
		}
	}
}

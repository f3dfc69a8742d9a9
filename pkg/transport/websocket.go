package transport

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cascadegame/cascade/pkg/term"
)

// WSConn speaks the terminal protocol over a websocket. Each binary message
// must contain exactly one key press; the framing layer already guarantees
// message boundaries, so partial sequences are a protocol violation rather
// than something to buffer.
type WSConn struct {
	conn *websocket.Conn
	ip   netip.Addr

	rate   rateWindow
	rateMu sync.Mutex

	mu      sync.Mutex // guards writes and close
	readErr error
	closed  bool
}

// NewWSConn wraps an upgraded websocket connection. ip is the
// admission-relevant client address, already resolved through any trusted
// proxy by the HTTP layer.
func NewWSConn(conn *websocket.Conn, ip netip.Addr) *WSConn {
	c := &WSConn{conn: conn, ip: ip}
	// Pings count against the input rate so a ping flood is handled the
	// same way as a key flood.
	c.conn.SetPingHandler(func(appData string) error {
		c.rateMu.Lock()
		ok := c.rate.allow(time.Now())
		c.rateMu.Unlock()
		if !ok {
			return fmt.Errorf("transport: too many pings: %w", ErrClosed)
		}
		c.conn.SetReadDeadline(time.Now().Add(receiveTimeout))
		return c.writeControl(websocket.PongMessage, []byte(appData))
	})
	return c
}

func (c *WSConn) RemoteIP() netip.Addr { return c.ip }

// ReadKey blocks for the next binary message and decodes it as a single key
// press. Messages that are empty, hold more than one key, or are not binary
// are malformed and close the connection.
func (c *WSConn) ReadKey() (term.Key, error) {
	if err := c.failed(); err != nil {
		return term.Key{}, err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(receiveTimeout)); err != nil {
		return term.Key{}, c.fail(fmt.Errorf("transport: %w", ErrClosed))
	}
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return term.Key{}, c.fail(fmt.Errorf("transport: read: %v: %w", err, ErrClosed))
	}
	if msgType != websocket.BinaryMessage {
		return term.Key{}, c.fail(fmt.Errorf("transport: non-binary message: %w", ErrClosed))
	}
	key, used := term.DecodeKey(data)
	if used == 0 || used != len(data) {
		return term.Key{}, c.fail(fmt.Errorf("transport: message is not exactly one key press: %w", ErrClosed))
	}
	c.rateMu.Lock()
	ok := c.rate.allow(time.Now())
	c.rateMu.Unlock()
	if !ok {
		return term.Key{}, c.fail(fmt.Errorf("transport: too many key presses: %w", ErrClosed))
	}
	return key, nil
}

func (c *WSConn) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		c.closed = true
		c.conn.Close()
		return fmt.Errorf("transport: write: %v: %w", err, ErrClosed)
	}
	return nil
}

func (c *WSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func (c *WSConn) writeControl(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.conn.WriteControl(msgType, data, time.Now().Add(writeTimeout))
}

func (c *WSConn) fail(err error) error {
	c.mu.Lock()
	c.readErr = err
	c.closed = true
	c.mu.Unlock()
	c.conn.Close()
	return err
}

func (c *WSConn) failed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil || c.closed {
		return ErrClosed
	}
	return nil
}

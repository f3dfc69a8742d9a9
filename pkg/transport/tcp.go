package transport

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/cascadegame/cascade/pkg/term"
)

// tcpReadBuffer bounds how many undecodable bytes a client may keep on the
// wire. Far larger than any single key press.
const tcpReadBuffer = 100

// TCPConn speaks the terminal protocol directly over a TCP socket: no
// framing, keys decoded incrementally as bytes arrive.
type TCPConn struct {
	conn net.Conn
	ip   netip.Addr

	buf  []byte
	n    int
	rate rateWindow

	mu      sync.Mutex // guards writes and close
	readErr error
	closed  bool
}

// NewTCPConn wraps an accepted socket. Nagle's algorithm is disabled so
// small render updates reach the terminal promptly.
func NewTCPConn(conn net.Conn) (*TCPConn, error) {
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: set nodelay: %w", err)
		}
	}
	addr, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: remote address: %w", err)
	}
	return &TCPConn{
		conn: conn,
		ip:   addr.Addr().Unmap(),
		buf:  make([]byte, tcpReadBuffer),
	}, nil
}

func (c *TCPConn) RemoteIP() netip.Addr { return c.ip }

// ReadKey blocks until one key press is decodable from the stream. Escape
// sequences and UTF-8 characters split across segments are reassembled;
// a buffer that fills without yielding a key is malformed and closes the
// connection, as does exceeding the input rate ceiling or the receive
// timeout.
func (c *TCPConn) ReadKey() (term.Key, error) {
	if err := c.failed(); err != nil {
		return term.Key{}, err
	}
	for {
		if key, used := term.DecodeKey(c.buf[:c.n]); used > 0 {
			copy(c.buf, c.buf[used:c.n])
			c.n -= used
			if !c.rate.allow(time.Now()) {
				return term.Key{}, c.fail(fmt.Errorf("transport: too many key presses: %w", ErrClosed))
			}
			return key, nil
		}
		if c.n == len(c.buf) {
			return term.Key{}, c.fail(fmt.Errorf("transport: receive buffer full without a key press: %w", ErrClosed))
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(receiveTimeout)); err != nil {
			return term.Key{}, c.fail(fmt.Errorf("transport: %w", ErrClosed))
		}
		n, err := c.conn.Read(c.buf[c.n:])
		c.n += n
		if err != nil {
			return term.Key{}, c.fail(fmt.Errorf("transport: read: %v: %w", err, ErrClosed))
		}
	}
}

func (c *TCPConn) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return ErrClosed
	}
	if _, err := c.conn.Write(p); err != nil {
		c.closed = true
		c.conn.Close()
		return fmt.Errorf("transport: write: %v: %w", err, ErrClosed)
	}
	return nil
}

func (c *TCPConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *TCPConn) fail(err error) error {
	c.mu.Lock()
	c.readErr = err
	c.closed = true
	c.mu.Unlock()
	c.conn.Close()
	return err
}

func (c *TCPConn) failed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return ErrClosed
	}
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Package transport adapts raw TCP byte streams and framed websocket
// connections to one key-in, bytes-out interface. Everything above it is
// transport-agnostic.
package transport

import (
	"errors"
	"net/netip"
	"time"

	"github.com/cascadegame/cascade/pkg/term"
)

// ErrClosed is returned once the connection has failed or been closed.
// Every call after the first failure reports it; callers never see a
// half-dead connection.
var ErrClosed = errors.New("transport: connection closed")

const (
	// receiveTimeout disconnects clients that send nothing for this long.
	receiveTimeout = 10 * time.Minute

	// writeTimeout bounds a single flush to a stalled client.
	writeTimeout = 10 * time.Second

	// maxKeysPerSecond is the input rate ceiling. Humans never get close;
	// exceeding it is treated the same as malformed input.
	maxKeysPerSecond = 100
)

// Conn is a client connection. ReadKey blocks for the next decoded key
// press; Write ships rendered bytes. Implementations are safe for one
// reader and one writer running concurrently.
type Conn interface {
	ReadKey() (term.Key, error)
	Write(p []byte) error
	Close() error

	// RemoteIP is the admission-relevant source address: the socket peer,
	// or the client address a trusted proxy reported.
	RemoteIP() netip.Addr
}

// rateWindow counts key presses in a one-second rolling window.
type rateWindow struct {
	times []time.Time
}

// allow records one key press at now and reports whether the rate ceiling
// still holds.
func (w *rateWindow) allow(now time.Time) bool {
	cutoff := now.Add(-time.Second)
	keep := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	w.times = append(keep, now)
	return len(w.times) <= maxKeysPerSecond
}

package server

import "errors"

// Sentinel errors for connection handling.
var (
	// ErrServerClosed is returned from Run after a clean shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrQuit is returned by a view when the client asked to disconnect.
	ErrQuit = errors.New("server: client quit")

	// ErrNoForwardedAddr is returned when a request arrives through a
	// trusted proxy without a forwarded client address.
	ErrNoForwardedAddr = errors.New("server: no forwarded address from trusted proxy")
)

// Package server runs the cascade game server: it accepts clients over
// raw TCP and websocket, admits them against the per-address ceiling,
// and drives each one through the view sequence from name entry to
// lobbies, games and results.
//
// Each connected client is one Session with three goroutines: a reader
// decoding key presses, a render loop shipping display diffs, and the
// view loop itself. Everything a session owns is torn down from its own
// run method, so a disconnect anywhere unwinds to the same place.
package server

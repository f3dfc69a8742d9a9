// Package lobby groups connected peers into shared game rooms addressed by
// short, human-typeable ids.
package lobby

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/cascadegame/cascade/pkg/game"
	"github.com/cascadegame/cascade/pkg/term"
)

var (
	ErrNotFound = errors.New("lobby: no lobby with that id")
	ErrFull     = errors.New("lobby: lobby is full")
	ErrGameFull = errors.New("lobby: game is full")
)

// MaxMembers bounds one lobby. Matches the per-game player ceiling.
const MaxMembers = 6

// memberColors are handed out first-unused, so colors stay stable as peers
// come and go.
var memberColors = []term.Color{
	term.RedFg, term.GreenFg, term.YellowFg,
	term.BlueFg, term.MagentaFg, term.CyanFg,
}

// Peer is the lobby's view of one connected session: identity only, no way
// to call back into the session.
type Peer struct {
	ID    uint64
	Name  string
	Color term.Color
}

// Lobby is one room: an ordered member list, a change broadcast, and at
// most one running game.
type Lobby struct {
	id     string
	logger *slog.Logger

	mu      sync.Mutex
	members []Peer
	changed map[uint64]chan struct{}
	driver  *game.Driver
	makeDrv func(*game.Game) *game.Driver
}

// ID returns the lobby's six-character id.
func (l *Lobby) ID() string { return l.id }

// Members returns a snapshot of the current members in join order.
func (l *Lobby) Members() []Peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Peer, len(l.members))
	copy(out, l.members)
	return out
}

// Changed returns the member's refresh channel. Capacity one: change
// signals collapse and the member re-renders from current state.
func (l *Lobby) Changed(peerID uint64) <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changed[peerID]
}

func (l *Lobby) notifyLocked() {
	for _, ch := range l.changed {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// NotifyChanged wakes every member to re-render its current view.
func (l *Lobby) NotifyChanged() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifyLocked()
}

func (l *Lobby) addLocked(peer Peer) (Peer, error) {
	if len(l.members) >= MaxMembers {
		return Peer{}, ErrFull
	}
	peer.Color = l.firstFreeColorLocked()
	l.members = append(l.members, peer)
	l.changed[peer.ID] = make(chan struct{}, 1)
	l.notifyLocked()
	return peer, nil
}

func (l *Lobby) firstFreeColorLocked() term.Color {
	for _, c := range memberColors {
		used := false
		for _, m := range l.members {
			if m.Color == c {
				used = true
				break
			}
		}
		if !used {
			return c
		}
	}
	return memberColors[0]
}

// removeLocked drops the peer from the member list and from any running
// game, and reports whether the lobby is now empty.
func (l *Lobby) removeLocked(peerID uint64) bool {
	for i, m := range l.members {
		if m.ID == peerID {
			l.members = append(l.members[:i], l.members[i+1:]...)
			break
		}
	}
	delete(l.changed, peerID)
	if l.driver != nil {
		l.driver.WithGame(func(g *game.Game) bool {
			g.RemovePlayer(peerID)
			return true
		})
	}
	l.notifyLocked()
	return len(l.members) == 0
}

// JoinGame puts the peer into the lobby's game, starting a fresh game if
// none is running. Joining a running game attaches mid-play without
// resetting anyone. The caller attaches to the returned driver itself.
func (l *Lobby) JoinGame(peer Peer) (*game.Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.driver == nil || l.driver.Finished() || l.driver.Stopped() {
		l.driver = l.makeDrv(game.NewGame(gameSeed()))
	}
	ok := false
	l.driver.WithGame(func(g *game.Game) bool {
		ok = g.AddPlayer(peer.ID, peer.Name, peer.Color)
		return ok
	})
	if !ok {
		return nil, ErrGameFull
	}
	return l.driver, nil
}

// LeaveGame removes the peer from the running game while keeping its
// lobby membership. Safe to call when no game is running or the peer
// never joined one.
func (l *Lobby) LeaveGame(peerID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.driver == nil {
		return
	}
	l.driver.WithGame(func(g *game.Game) bool {
		g.RemovePlayer(peerID)
		return true
	})
	l.notifyLocked()
}

// Driver returns the current game driver, or nil when no game is running.
func (l *Lobby) Driver() *game.Driver {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.driver
}

// PlayerCount returns how many peers are in the running game.
func (l *Lobby) PlayerCount() int {
	l.mu.Lock()
	drv := l.driver
	l.mu.Unlock()
	if drv == nil || drv.Finished() || drv.Stopped() {
		return 0
	}
	n := 0
	drv.ReadGame(func(g *game.Game) { n = len(g.Players()) })
	return n
}

package lobby

import (
	"crypto/rand"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cascadegame/cascade/pkg/game"
)

// IDAlphabet is the character set for lobby ids. Characters that are easy
// to confuse with each other over voice or bad handwriting are left out.
const IDAlphabet = "DHJKLMNPRTWXY379"

// IDLength is the fixed lobby id length.
const IDLength = 6

// LooksLikeID reports whether s is shaped like a lobby id after uppercasing.
// Used by prompts to give early feedback before hitting the registry.
func LooksLikeID(s string) bool {
	s = strings.ToUpper(s)
	if len(s) != IDLength {
		return false
	}
	for _, ch := range s {
		if !strings.ContainsRune(IDAlphabet, ch) {
			return false
		}
	}
	return true
}

// Registry owns every live lobby. A lobby exists exactly while it has
// members: Create inserts it with its first member, and the Leave that
// removes the last member deletes it in the same call, tearing down any
// running game on the way. There is no state in which an empty lobby is
// observable.
type Registry struct {
	logger  *slog.Logger
	makeDrv func(*game.Game) *game.Driver

	mu      sync.Mutex
	lobbies map[string]*Lobby
}

// NewRegistry creates an empty registry. makeDriver builds a driver for a
// fresh game; it lets the server inject the results recorder and metrics
// without this package knowing about them.
func NewRegistry(logger *slog.Logger, makeDriver func(*game.Game) *game.Driver) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger.With("component", "lobby"),
		makeDrv: makeDriver,
		lobbies: make(map[string]*Lobby),
	}
}

// Create makes a new lobby with peer as its first member and returns it
// with the peer's assigned color filled in.
func (r *Registry) Create(peer Peer) (*Lobby, Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.unusedIDLocked()
	l := &Lobby{
		id:      id,
		logger:  r.logger.With("lobby", id),
		changed: make(map[uint64]chan struct{}),
		makeDrv: r.makeDrv,
	}
	l.mu.Lock()
	member, err := l.addLocked(peer)
	l.mu.Unlock()
	if err != nil {
		return nil, Peer{}, err
	}
	r.lobbies[id] = l
	r.logger.Info("lobby created", "lobby", id, "peer", peer.Name)
	return l, member, nil
}

// Join adds peer to the lobby with the given id. The id is matched
// case-insensitively. Returns ErrNotFound or ErrFull for re-promptable
// failures.
func (r *Registry) Join(id string, peer Peer) (*Lobby, Peer, error) {
	id = strings.ToUpper(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[id]
	if !ok {
		return nil, Peer{}, ErrNotFound
	}
	l.mu.Lock()
	member, err := l.addLocked(peer)
	l.mu.Unlock()
	if err != nil {
		return nil, Peer{}, err
	}
	r.logger.Info("peer joined lobby", "lobby", id, "peer", peer.Name)
	return l, member, nil
}

// Leave removes the peer from the lobby. Removing the last member destroys
// the lobby synchronously: the registry entry is gone and any running game
// is stopped before Leave returns.
func (r *Registry) Leave(l *Lobby, peerID uint64) {
	r.mu.Lock()
	l.mu.Lock()
	empty := l.removeLocked(peerID)
	var drv *game.Driver
	if empty {
		delete(r.lobbies, l.id)
		drv = l.driver
		l.driver = nil
	}
	l.mu.Unlock()
	r.mu.Unlock()

	if empty {
		if drv != nil {
			drv.Stop()
		}
		r.logger.Info("lobby destroyed", "lobby", l.id)
	}
}

// Count returns the number of live lobbies.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lobbies)
}

func (r *Registry) unusedIDLocked() string {
	for {
		id := randomID()
		if _, taken := r.lobbies[id]; !taken {
			return id
		}
	}
}

func randomID() string {
	var raw [IDLength]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// time-derived id rather than crashing lobby creation.
		t := time.Now().UnixNano()
		for i := range raw {
			raw[i] = byte(t >> (8 * i))
		}
	}
	id := make([]byte, IDLength)
	for i, b := range raw {
		id[i] = IDAlphabet[int(b)%len(IDAlphabet)]
	}
	return string(id)
}

func gameSeed() int64 {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return time.Now().UnixNano()
	}
	var seed int64
	for _, b := range raw {
		seed = seed<<8 | int64(b)
	}
	return seed
}

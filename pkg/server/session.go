package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/cascadegame/cascade/pkg/admission"
	"github.com/cascadegame/cascade/pkg/game"
	"github.com/cascadegame/cascade/pkg/lobby"
	"github.com/cascadegame/cascade/pkg/screen"
	"github.com/cascadegame/cascade/pkg/term"
	"github.com/cascadegame/cascade/pkg/transport"
)

const (
	screenWidth  = 80
	screenHeight = 24
)

// Session drives one client's view sequence over one connection. It owns
// the connection, the admission token and the display state; nothing
// outside the session mutates them.
type Session struct {
	id     uint64
	srv    *Server
	conn   transport.Conn
	token  *admission.Token
	logger *slog.Logger

	// keys carries decoded key presses from the reader goroutine to the
	// active view. Closed when the transport fails.
	keys chan term.Key

	// done is closed during teardown to stop the render goroutine.
	done chan struct{}

	sync *screen.Synchronizer

	// mu guards the view state read by the render goroutine: the current
	// draw function and whatever session fields it touches.
	mu       sync.Mutex
	renderFn func(*screen.Buffer)
	renderCh chan struct{}

	name   string
	peer   lobby.Peer
	lobby  *lobby.Lobby
	driver *game.Driver
	hideID bool
}

func newSession(id uint64, srv *Server, conn transport.Conn, token *admission.Token) *Session {
	return &Session{
		id:       id,
		srv:      srv,
		conn:     conn,
		token:    token,
		logger:   srv.logger.With("client_id", id),
		keys:     make(chan term.Key, 1),
		done:     make(chan struct{}),
		sync:     screen.NewSynchronizer(),
		renderCh: make(chan struct{}, 1),
	}
}

// run executes the view sequence until the client quits or the transport
// fails, then tears the session down.
func (s *Session) run() {
	defer s.teardown()

	go s.readLoop()
	go s.renderLoop()

	err := s.viewSequence()
	switch {
	case errors.Is(err, ErrQuit):
		s.logger.Info("client quit")
	case errors.Is(err, transport.ErrClosed):
		s.logger.Info("disconnected", "error", err)
	case err != nil:
		s.logger.Warn("session ended", "error", err)
	}
}

func (s *Session) viewSequence() error {
	if err := s.askName(); err != nil {
		return err
	}
	s.logger.Info("name chosen", "name", s.name)

	makeNew, err := s.askIfNewLobby()
	if err != nil {
		return err
	}
	if makeNew {
		l, peer, err := s.srv.registry.Create(lobby.Peer{ID: s.id, Name: s.name})
		if err != nil {
			return err
		}
		s.setLobby(l, peer)
	} else {
		if err := s.askLobbyID(); err != nil {
			return err
		}
	}
	s.logger.Info("in lobby", "lobby_id", s.lobby.ID())

	selected := 0
	for {
		choice, err := s.chooseGame(&selected)
		if err != nil {
			return err
		}
		switch choice {
		case choicePlay:
			drv, err := s.playGame()
			if err != nil {
				return err
			}
			if drv != nil {
				if err := s.showResults(drv); err != nil {
					return err
				}
			}
		case choiceTips:
			if err := s.showTips(); err != nil {
				return err
			}
		}
	}
}

// readLoop pumps decoded keys from the connection. Refresh requests are
// handled here so a redraw works in every view; the keys channel is
// closed when the transport reports an error.
func (s *Session) readLoop() {
	for {
		key, err := s.conn.ReadKey()
		if err != nil {
			close(s.keys)
			return
		}
		if key.Kind == term.KeyRefresh {
			s.mu.Lock()
			s.sync.ForceRedraw()
			s.mu.Unlock()
			s.requestRender()
			continue
		}
		select {
		case s.keys <- key:
		case <-s.done:
			return
		}
	}
}

// renderLoop redraws the current view on demand and ships the diff.
// Signals collapse in the 1-buffered channel; every wakeup re-renders
// from current state.
func (s *Session) renderLoop() {
	buf := screen.NewBuffer(screenWidth, screenHeight)
	for {
		select {
		case <-s.done:
			return
		case <-s.renderCh:
		}

		s.mu.Lock()
		fn := s.renderFn
		if fn == nil {
			s.mu.Unlock()
			continue
		}
		buf.Clear()
		fn(buf)
		out := s.sync.Sync(buf)
		s.mu.Unlock()
		if len(out) == 0 {
			continue
		}
		if err := s.conn.Write(out); err != nil {
			return
		}
		s.srv.metrics.BytesWritten.Add(float64(len(out)))
	}
}

// installView installs the draw function for the current view and
// schedules a render.
func (s *Session) installView(fn func(*screen.Buffer)) {
	s.mu.Lock()
	s.renderFn = fn
	s.mu.Unlock()
	s.requestRender()
}

// setView installs a fixed-geometry view. The in-game view sizes the
// buffer to the field itself and goes through installView directly;
// every other view draws at the standard terminal size, shrinking the
// buffer back after a game.
func (s *Session) setView(fn func(*screen.Buffer)) {
	s.installView(func(buf *screen.Buffer) {
		buf.Resize(screenWidth, screenHeight)
		fn(buf)
	})
}

func (s *Session) requestRender() {
	select {
	case s.renderCh <- struct{}{}:
	default:
	}
}

// nextKey blocks for the next key press. Quit keys and transport failure
// surface as errors so every view exits the same way.
func (s *Session) nextKey() (term.Key, error) {
	key, ok := <-s.keys
	if !ok {
		return term.Key{}, transport.ErrClosed
	}
	if key.Kind == term.KeyQuit {
		return term.Key{}, ErrQuit
	}
	return key, nil
}

func (s *Session) setLobby(l *lobby.Lobby, peer lobby.Peer) {
	s.mu.Lock()
	s.lobby = l
	s.peer = peer
	s.mu.Unlock()
}

// teardown detaches from the game, leaves the lobby, releases the
// admission token and the claimed name, then closes the connection.
// The order matters: the peer must be gone from shared state before its
// capacity is handed back.
func (s *Session) teardown() {
	s.mu.Lock()
	// Drop the view first: the render goroutine is still alive and the
	// view closures read the lobby fields cleared below.
	s.renderFn = nil
	drv := s.driver
	s.driver = nil
	l := s.lobby
	s.lobby = nil
	name := s.name
	s.mu.Unlock()

	if drv != nil {
		drv.Detach(s.id)
	}
	if l != nil {
		s.srv.registry.Leave(l, s.id)
	}
	s.token.Release()
	if name != "" {
		s.srv.names.Release(name)
	}

	close(s.done)

	// Leave the client's terminal usable.
	cleanup := term.ShowCursor + term.MoveCursor(0, screenHeight-1) + term.ClearToEndOfScreen
	_ = s.conn.Write([]byte(cleanup))
	_ = s.conn.Close()

	s.srv.metrics.ActiveSessions.Dec()
	s.srv.sessionDone()
}

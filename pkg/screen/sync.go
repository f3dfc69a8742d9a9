package screen

import (
	"strings"

	"github.com/cascadegame/cascade/pkg/term"
)

// Synchronizer keeps a private copy of the last display state shipped to one
// client and encodes the difference to the current target as a minimal run
// of wire bytes. It owns no I/O; callers send what Sync returns.
type Synchronizer struct {
	last      *Buffer
	firstSync bool
}

// NewSynchronizer returns a synchronizer that has sent nothing yet. The
// first Sync clears the client terminal so the diff base is known.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{last: NewBuffer(0, 0), firstSync: true}
}

// Sync computes the update that brings the client from the previously
// synced state to target and records target as the new base. Calling Sync
// again with an unchanged target returns nil.
//
// A geometry change emits the terminal resize directive first; the diff
// base is resized the same content-preserving way the target was, so only
// genuinely changed cells are re-sent afterwards.
func (s *Synchronizer) Sync(target *Buffer) []byte {
	var out strings.Builder

	if target.width != s.last.width || target.height != s.last.height {
		out.WriteString(term.ResizeTerminal(target.width, target.height))
		s.last.Resize(target.width, target.height)
	}
	if s.firstSync {
		out.WriteString(term.ClearScreen)
		s.firstSync = false
	}

	current := term.DefaultColor
	for y := 0; y < target.height; y++ {
		positioned := false
		for x := 0; x < target.width; x++ {
			c := target.cells[y][x]
			if c == s.last.cells[y][x] {
				positioned = false
				continue
			}
			if !positioned {
				out.WriteString(term.MoveCursor(x, y))
				positioned = true
			}
			if c.Color != current {
				out.WriteString(c.Color.Escape())
				current = c.Color
			}
			out.WriteRune(c.Ch)
			s.last.cells[y][x] = c
		}
	}

	cursorMoved := target.CursorVisible != s.last.CursorVisible ||
		(target.CursorVisible && (target.CursorX != s.last.CursorX || target.CursorY != s.last.CursorY))

	if out.Len() == 0 && !cursorMoved {
		return nil
	}

	out.WriteString(term.ResetColors)
	if target.CursorVisible {
		out.WriteString(term.MoveCursor(target.CursorX, target.CursorY))
		out.WriteString(term.ShowCursor)
	} else {
		out.WriteString(term.HideCursor)
	}
	s.last.CursorX = target.CursorX
	s.last.CursorY = target.CursorY
	s.last.CursorVisible = target.CursorVisible

	return []byte(out.String())
}

// ForceRedraw discards the diff base so the next Sync retransmits the whole
// display. Used for client-requested refreshes.
func (s *Synchronizer) ForceRedraw() {
	s.last = NewBuffer(0, 0)
	s.firstSync = true
}

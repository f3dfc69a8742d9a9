package screen

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cascadegame/cascade/pkg/term"
)

func TestSyncIdempotent(t *testing.T) {
	buf := NewBuffer(20, 5)
	buf.DrawText(2, 1, "hello", term.CyanFg)
	buf.SetCursor(7, 1)

	s := NewSynchronizer()
	first := s.Sync(buf)
	if len(first) == 0 {
		t.Fatal("first sync produced no output")
	}
	if second := s.Sync(buf); len(second) != 0 {
		t.Fatalf("second sync of unchanged buffer produced %q", second)
	}
}

func TestSyncOnlyChangedCells(t *testing.T) {
	buf := NewBuffer(20, 5)
	buf.DrawText(0, 0, "aaaaaaaaaa", term.DefaultColor)

	s := NewSynchronizer()
	s.Sync(buf)

	buf.SetCell(3, 0, 'X', term.DefaultColor)
	out := string(s.Sync(buf))
	if strings.Count(out, "X") != 1 {
		t.Fatalf("update %q does not contain the one changed cell", out)
	}
	if strings.Contains(out, "a") {
		t.Fatalf("update %q re-sends unchanged cells", out)
	}
}

func TestSyncResizeEmitsDirectiveNotRepaint(t *testing.T) {
	buf := NewBuffer(80, 24)
	buf.DrawText(0, 0, "title", term.DefaultColor)

	s := NewSynchronizer()
	s.Sync(buf)

	buf.Resize(100, 30)
	buf.SetCell(99, 29, '!', term.DefaultColor)
	out := string(s.Sync(buf))

	if !strings.HasPrefix(out, term.ResizeTerminal(100, 30)) {
		t.Fatalf("update %q does not start with the resize directive", out)
	}
	if strings.Contains(out, "title") {
		t.Fatalf("update %q repaints preserved content", out)
	}
	if strings.Count(out, "!") != 1 {
		t.Fatalf("update %q should carry exactly the one changed cell", out)
	}
}

func TestSyncForceRedraw(t *testing.T) {
	buf := NewBuffer(10, 3)
	buf.DrawText(0, 0, "abc", term.GreenFg)

	s := NewSynchronizer()
	s.Sync(buf)
	s.ForceRedraw()

	out := string(s.Sync(buf))
	if !strings.Contains(out, term.ClearScreen) {
		t.Fatalf("redraw %q does not clear the screen", out)
	}
	if !strings.Contains(out, "abc") {
		t.Fatalf("redraw %q does not repaint content", out)
	}
}

// replayTerminal applies synchronizer output to a model terminal so tests
// can check that incremental updates reproduce the target display.
type replayTerminal struct {
	buf    *Buffer
	x, y   int
	color  term.Color
	hidden bool
}

func newReplayTerminal() *replayTerminal {
	return &replayTerminal{buf: NewBuffer(0, 0)}
}

func (rt *replayTerminal) apply(t *testing.T, data []byte) {
	t.Helper()
	for len(data) > 0 {
		switch {
		case bytes.HasPrefix(data, []byte(term.ClearScreen)):
			rt.buf.Clear()
			data = data[len(term.ClearScreen):]
		case bytes.HasPrefix(data, []byte(term.ResetColors)):
			rt.color = term.DefaultColor
			data = data[len(term.ResetColors):]
		case bytes.HasPrefix(data, []byte(term.ShowCursor)):
			rt.hidden = false
			data = data[len(term.ShowCursor):]
		case bytes.HasPrefix(data, []byte(term.HideCursor)):
			rt.hidden = true
			data = data[len(term.HideCursor):]
		case bytes.HasPrefix(data, []byte("\x1b[")):
			end := bytes.IndexAny(data, "Hmt")
			if end < 0 {
				t.Fatalf("unterminated escape in %q", data)
			}
			seq, final := data[2:end], data[end]
			data = data[end+1:]
			switch final {
			case 'H':
				var y, x int
				if _, err := sscanTwo(seq, &y, &x); err != nil {
					t.Fatalf("bad cursor move %q", seq)
				}
				rt.x, rt.y = x-1, y-1
			case 't':
				rest := bytes.TrimPrefix(seq, []byte("8;"))
				var h, w int
				if _, err := sscanTwo(rest, &h, &w); err != nil {
					t.Fatalf("bad resize %q", seq)
				}
				rt.buf.Resize(w, h)
			case 'm':
				var n int
				if _, err := sscanOne(bytes.TrimPrefix(seq, []byte("1;")), &n); err != nil {
					t.Fatalf("bad color %q", seq)
				}
				if n >= 40 && n != 90 {
					rt.color.Bg = uint8(n)
				} else {
					rt.color.Fg = uint8(n)
				}
			}
		default:
			ch, size := utf8.DecodeRune(data)
			rt.buf.SetCell(rt.x, rt.y, ch, rt.color)
			rt.x++
			data = data[size:]
		}
	}
}

func sscanTwo(b []byte, first, second *int) (int, error) {
	return fmt.Sscanf(string(b), "%d;%d", first, second)
}

func sscanOne(b []byte, n *int) (int, error) {
	return fmt.Sscanf(string(b), "%d", n)
}

func TestSyncReplayEquivalence(t *testing.T) {
	// A sequence of random edits applied one sync at a time must leave a
	// model terminal showing exactly the final buffer.
	rng := rand.New(rand.NewSource(1))
	buf := NewBuffer(30, 10)
	s := NewSynchronizer()
	rt := newReplayTerminal()

	colors := []term.Color{
		term.DefaultColor, term.RedFg, term.GreenFg, term.CyanFg, term.WhiteBg,
	}
	for step := 0; step < 50; step++ {
		for i := 0; i < 5; i++ {
			x, y := rng.Intn(30), rng.Intn(10)
			ch := rune('a' + rng.Intn(26))
			buf.SetCell(x, y, ch, colors[rng.Intn(len(colors))])
		}
		rt.apply(t, s.Sync(buf))
	}

	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			if got, want := rt.buf.Cell(x, y), buf.Cell(x, y); got != want {
				t.Fatalf("cell (%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestBufferResizePreservesContent(t *testing.T) {
	buf := NewBuffer(5, 2)
	buf.DrawText(0, 0, "hi", term.RedFg)
	buf.Resize(8, 4)
	if got := buf.Cell(0, 0); got.Ch != 'h' || got.Color != term.RedFg {
		t.Fatalf("cell (0,0) = %+v after grow", got)
	}
	if got := buf.Cell(7, 3); got != (Cell{Ch: ' '}) {
		t.Fatalf("new cell not blank: %+v", got)
	}
	buf.Resize(1, 1)
	if got := buf.Cell(0, 0); got.Ch != 'h' {
		t.Fatalf("cell (0,0) = %+v after shrink", got)
	}
}

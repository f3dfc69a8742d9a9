// Package screen holds the server-side model of each client's terminal and
// the synchronizer that turns model changes into minimal wire updates.
package screen

import "github.com/cascadegame/cascade/pkg/term"

// Cell is one character cell of the terminal grid.
type Cell struct {
	Ch    rune
	Color term.Color
}

var blankCell = Cell{Ch: ' '}

// Buffer is a mutable in-memory terminal display: a grid of cells plus
// cursor position and visibility. Views draw into a Buffer; the
// Synchronizer ships it to the client. A Buffer is not safe for concurrent
// use; the owning session serializes access.
type Buffer struct {
	width  int
	height int
	cells  [][]Cell

	CursorX       int
	CursorY       int
	CursorVisible bool
}

// NewBuffer returns a blank width x height buffer with a hidden cursor.
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{}
	b.Resize(width, height)
	return b
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Resize grows or shrinks the buffer to width x height. Cells that exist in
// both geometries keep their contents; new cells are blank.
func (b *Buffer) Resize(width, height int) {
	if width == b.width && height == b.height {
		return
	}
	cells := make([][]Cell, height)
	for y := range cells {
		row := make([]Cell, width)
		for x := range row {
			if y < b.height && x < b.width {
				row[x] = b.cells[y][x]
			} else {
				row[x] = blankCell
			}
		}
		cells[y] = row
	}
	b.width = width
	b.height = height
	b.cells = cells
}

// Clear blanks every cell and hides the cursor.
func (b *Buffer) Clear() {
	for y := range b.cells {
		for x := range b.cells[y] {
			b.cells[y][x] = blankCell
		}
	}
	b.CursorVisible = false
}

// Cell returns the cell at (x, y). Out-of-range coordinates read as blank.
func (b *Buffer) Cell(x, y int) Cell {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return blankCell
	}
	return b.cells[y][x]
}

// SetCell writes one cell. Out-of-range coordinates are ignored so drawing
// code near the edges doesn't need its own clipping.
func (b *Buffer) SetCell(x, y int, ch rune, color term.Color) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	b.cells[y][x] = Cell{Ch: ch, Color: color}
}

// DrawText writes text starting at (x, y), clipping at the right edge.
// Returns the x coordinate just past the last rune drawn.
func (b *Buffer) DrawText(x, y int, text string, color term.Color) int {
	for _, ch := range text {
		b.SetCell(x, y, ch, color)
		x++
	}
	return x
}

// DrawCenteredText writes text horizontally centered on row y.
func (b *Buffer) DrawCenteredText(y int, text string, color term.Color) {
	n := 0
	for range text {
		n++
	}
	b.DrawText((b.width-n)/2, y, text, color)
}

// ClearRow blanks row y.
func (b *Buffer) ClearRow(y int) {
	if y < 0 || y >= b.height {
		return
	}
	for x := range b.cells[y] {
		b.cells[y][x] = blankCell
	}
}

// SetCursor places the cursor at (x, y) and makes it visible.
func (b *Buffer) SetCursor(x, y int) {
	b.CursorX = x
	b.CursorY = y
	b.CursorVisible = true
}

// Clone returns an independent deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		width:         b.width,
		height:        b.height,
		cells:         make([][]Cell, b.height),
		CursorX:       b.CursorX,
		CursorY:       b.CursorY,
		CursorVisible: b.CursorVisible,
	}
	for y := range b.cells {
		row := make([]Cell, b.width)
		copy(row, b.cells[y])
		c.cells[y] = row
	}
	return c
}

package game

import (
	"strconv"
	"strings"

	"github.com/cascadegame/cascade/pkg/screen"
	"github.com/cascadegame/cascade/pkg/term"
)

// Each game square is two terminal cells wide so the field looks roughly
// square on common fonts.
const squareWidth = 2

// RenderTo draws the whole in-game display for one viewer: the shared field
// with walls and player names, plus the side panel with lobby id, score,
// and block previews. The buffer is resized to fit.
func RenderTo(buf *screen.Buffer, g *Game, viewerID uint64, lobbyID string, hideID bool) {
	fieldW := g.width() * squareWidth
	panelX := fieldW + 3
	w := panelX + 22
	if w < 80 {
		w = 80
	}
	h := g.height() + 2
	if h < 24 {
		h = 24
	}
	buf.Resize(w, h)
	buf.Clear()

	drawWalls(buf, g, viewerID)
	drawField(buf, g, viewerID)
	drawWaitTimers(buf, g)
	if g.Paused() {
		drawPause(buf, g)
	}
	drawPanel(buf, g, viewerID, panelX, lobbyID, hideID)
}

// drawWalls renders the border. The top edge carries each player's name
// over their slice, in their color; the viewer's own slice is underlined
// with '=' instead of '-'.
func drawWalls(buf *screen.Buffer, g *Game, viewerID uint64) {
	fieldW := g.width() * squareWidth
	wpp := g.widthPerPlayer() * squareWidth

	for x := 0; x < fieldW; x++ {
		buf.SetCell(1+x, 0, '-', term.Color{})
	}
	for i, p := range g.players {
		left := 1 + i*wpp
		edge := byte('-')
		if p.ID == viewerID {
			edge = '='
		}
		for x := 0; x < wpp; x++ {
			buf.SetCell(left+x, 0, rune(edge), p.Color)
		}
		name := p.Name
		if len(name) > wpp-2 {
			name = name[:wpp-2]
		}
		buf.DrawText(left+(wpp-len(name))/2, 0, name, p.Color)
	}

	for y := 0; y < g.height(); y++ {
		buf.SetCell(0, 1+y, '|', term.Color{})
		buf.SetCell(1+fieldW, 1+y, '|', term.Color{})
	}
	buf.SetCell(0, 0, 'o', term.Color{})
	buf.SetCell(1+fieldW, 0, 'o', term.Color{})
	bottom := 1 + g.height()
	buf.SetCell(0, bottom, 'o', term.Color{})
	buf.SetCell(1+fieldW, bottom, 'o', term.Color{})
	for x := 0; x < fieldW; x++ {
		buf.SetCell(1+x, bottom, '-', term.Color{})
	}
}

func drawSquare(buf *screen.Buffer, x, y int, ch rune, color term.Color) {
	for i := 0; i < squareWidth; i++ {
		buf.SetCell(1+x*squareWidth+i, 1+y, ch, color)
	}
}

func drawField(buf *screen.Buffer, g *Game, viewerID uint64) {
	// landed squares
	for y, row := range g.landed {
		for x, c := range row {
			if (c != term.Color{}) {
				drawSquare(buf, x, y, ' ', c)
			}
		}
	}

	// landing-place markers for the viewer's own block
	if _, viewer := g.player(viewerID); viewer != nil {
		for _, p := range g.predictLanding(viewer) {
			if p.y >= 0 && p.y < g.height() {
				drawSquare(buf, p.x, p.y, ':', term.Color{})
			}
		}
	}

	// falling blocks
	for _, p := range g.players {
		if p.block == nil {
			continue
		}
		for _, c := range p.block.coords() {
			if c.y >= 0 && c.y < g.height() {
				drawSquare(buf, c.x, c.y, ' ', p.block.color)
			}
		}
	}

	// flash overlay for rows being cleared
	for p := range g.flash {
		if p.y >= 0 && p.y < g.height() {
			drawSquare(buf, p.x, p.y, ' ', term.WhiteBg)
		}
	}
}

func drawWaitTimers(buf *screen.Buffer, g *Game) {
	wpp := g.widthPerPlayer() * squareWidth
	for i, p := range g.players {
		if p.timer == 0 {
			continue
		}
		left := 1 + i*wpp
		mid := g.height() / 2
		msg := "PLEASE WAIT"
		buf.DrawText(left+(wpp-len(msg))/2, mid, msg, p.Color)
		secs := strconv.Itoa(p.timer)
		buf.DrawText(left+(wpp-len(secs))/2, mid+1, secs, p.Color)
	}
}

func drawPause(buf *screen.Buffer, g *Game) {
	fieldW := g.width() * squareWidth
	mid := g.height() / 2
	for _, line := range []struct {
		dy   int
		text string
	}{
		{-1, strings.Repeat(" ", 24)},
		{0, "       Game paused      "},
		{1, "  Press p to continue.  "},
		{2, "  Press Enter to leave. "},
		{3, strings.Repeat(" ", 24)},
	} {
		x := 1 + (fieldW-len(line.text))/2
		buf.DrawText(x, mid+line.dy, line.text, term.BlackOnWhite)
	}
}

func drawPreview(buf *screen.Buffer, x, y int, b *fallingBlock) {
	if b == nil {
		return
	}
	for _, p := range b.rel {
		px := x + (p.x+2)*squareWidth
		py := y + p.y + 2
		for i := 0; i < squareWidth; i++ {
			buf.SetCell(px+i, py, ' ', b.color)
		}
	}
}

func drawPanel(buf *screen.Buffer, g *Game, viewerID uint64, panelX int, lobbyID string, hideID bool) {
	id := lobbyID
	if hideID {
		id = strings.Repeat("*", len(lobbyID))
	}
	buf.DrawText(panelX, 2, "Lobby ID: "+id, term.Color{})
	buf.DrawText(panelX, 4, "Score: "+strconv.Itoa(g.Score()), term.CyanFg)

	_, viewer := g.player(viewerID)
	if viewer == nil {
		return
	}
	if viewer.preferCCW {
		buf.DrawText(panelX, 5, "Counter-clockwise", term.Color{})
	}

	buf.DrawText(panelX, 8, "Next:", term.Color{})
	drawPreview(buf, panelX, 9, viewer.next)

	buf.DrawText(panelX, 15, "Holding:", term.Color{})
	if viewer.hold != nil {
		drawPreview(buf, panelX, 16, viewer.hold)
	} else {
		buf.DrawText(panelX, 17, "Nothing in hold", term.GrayFg)
		buf.DrawText(panelX, 18, "(press h)", term.GrayFg)
	}
}

package game

import (
	"math/rand"

	"github.com/cascadegame/cascade/pkg/term"
)

type point struct{ x, y int }

type rotateMode uint8

const (
	noRotating rotateMode = iota
	nextCounterClockwiseThenBack
	nextClockwiseThenBack
	fullRotating
)

// The seven tetrominoes. Guideline colors, except L which renders white
// because plain terminals lack orange.
var standardShapes = []struct {
	color  term.Color
	coords []point
}{
	{term.WhiteBg, []point{{-1, 0}, {0, 0}, {1, 0}, {1, -1}}},             // L
	{term.CyanBg, []point{{-2, 0}, {-1, 0}, {0, 0}, {1, 0}}},             // I
	{term.BlueBg, []point{{-1, -1}, {-1, 0}, {0, 0}, {1, 0}}},            // J
	{term.YellowBg, []point{{-1, 0}, {0, 0}, {0, -1}, {-1, -1}}},         // O
	{term.MagentaBg, []point{{-1, 0}, {0, 0}, {1, 0}, {0, -1}}},          // T
	{term.RedBg, []point{{-1, -1}, {0, -1}, {0, 0}, {1, 0}}},             // Z
	{term.GreenBg, []point{{1, -1}, {0, -1}, {0, 0}, {-1, 0}}},           // S
}

// shapesMatch reports whether a and b are the same shape up to translation.
func shapesMatch(a, b []point) bool {
	minX := func(ps []point) int {
		m := ps[0].x
		for _, p := range ps[1:] {
			if p.x < m {
				m = p.x
			}
		}
		return m
	}
	minY := func(ps []point) int {
		m := ps[0].y
		for _, p := range ps[1:] {
			if p.y < m {
				m = p.y
			}
		}
		return m
	}
	vx := minX(b) - minX(a)
	vy := minY(b) - minY(a)
	for _, bp := range b {
		found := false
		for _, ap := range a {
			if ap.x+vx == bp.x && ap.y+vy == bp.y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func rotatedOnce(coords []point) []point {
	out := make([]point, len(coords))
	for i, p := range coords {
		out[i] = point{-p.y, p.x}
	}
	return out
}

func rotatedTwice(coords []point) []point {
	out := make([]point, len(coords))
	for i, p := range coords {
		out[i] = point{-p.x, -p.y}
	}
	return out
}

// initialRotateMode picks how a shape may rotate: square-symmetric shapes
// never rotate, two-state shapes (I, S, Z) wiggle back and forth, the rest
// rotate freely.
func initialRotateMode(coords []point) rotateMode {
	if shapesMatch(coords, rotatedOnce(coords)) {
		return noRotating
	}
	if shapesMatch(coords, rotatedTwice(coords)) {
		return nextCounterClockwiseThenBack
	}
	return fullRotating
}

// fallingBlock is one tetromino in flight: a center in world coordinates
// plus relative square offsets.
type fallingBlock struct {
	color     term.Color
	rel       []point
	centerX   int
	centerY   int
	rotMode   rotateMode
	wasInHold bool
}

func newFallingBlock(rng *rand.Rand) *fallingBlock {
	shape := standardShapes[rng.Intn(len(standardShapes))]
	rel := make([]point, len(shape.coords))
	copy(rel, shape.coords)
	return &fallingBlock{
		color:   shape.color,
		rel:     rel,
		rotMode: initialRotateMode(rel),
	}
}

func (b *fallingBlock) spawnAt(x, y int) {
	b.centerX = x
	b.centerY = y
}

func (b *fallingBlock) coords() []point {
	out := make([]point, len(b.rel))
	for i, p := range b.rel {
		out[i] = point{b.centerX + p.x, b.centerY + p.y}
	}
	return out
}

func (b *fallingBlock) movedCoords(dx, dy int) []point {
	out := make([]point, len(b.rel))
	for i, p := range b.rel {
		out[i] = point{b.centerX + p.x + dx, b.centerY + p.y + dy}
	}
	return out
}

func (b *fallingBlock) rotatedRel(preferCCW bool) []point {
	var ccw bool
	switch b.rotMode {
	case noRotating:
		return b.rel
	case nextClockwiseThenBack:
		ccw = false
	case nextCounterClockwiseThenBack:
		ccw = true
	case fullRotating:
		ccw = preferCCW
	}
	out := make([]point, len(b.rel))
	for i, p := range b.rel {
		if ccw {
			out[i] = point{p.y, -p.x}
		} else {
			out[i] = point{-p.y, p.x}
		}
	}
	return out
}

func (b *fallingBlock) rotatedCoords(preferCCW bool) []point {
	rel := b.rotatedRel(preferCCW)
	out := make([]point, len(rel))
	for i, p := range rel {
		out[i] = point{b.centerX + p.x, b.centerY + p.y}
	}
	return out
}

func (b *fallingBlock) move(dx, dy int) {
	b.centerX += dx
	b.centerY += dy
}

func (b *fallingBlock) rotate(preferCCW bool) {
	b.rel = b.rotatedRel(preferCCW)
	switch b.rotMode {
	case nextCounterClockwiseThenBack:
		b.rotMode = nextClockwiseThenBack
	case nextClockwiseThenBack:
		b.rotMode = nextCounterClockwiseThenBack
	}
}

// Package game implements the falling-blocks game itself and the driver
// that advances it. All mutation goes through the driver's lock; the Game
// type has no locking of its own.
package game

import (
	"math/rand"
	"time"

	"github.com/cascadegame/cascade/pkg/term"
)

const (
	// MaxPlayers matches the lobby size.
	MaxPlayers = 6

	fieldHeight = 20

	waitTimerSeconds = 30
)

// Player is one participant's in-game state.
type Player struct {
	ID    uint64
	Name  string
	Color term.Color // name/wall color, foreground

	spawnX int

	block        *fallingBlock // nil while waiting
	timer        int           // seconds left on the please-wait timer
	timerPending bool
	next         *fallingBlock
	hold         *fallingBlock
	fastDown     bool
	preferCCW    bool
}

// WaitTimer returns the seconds left on the player's please-wait timer, or
// zero when the player has a block in flight.
func (p *Player) WaitTimer() int { return p.timer }

// Game is the shared playing field. The field is a horizontal strip of
// per-player slices; blocks may wander into neighbor slices, and full rows
// clear across the whole field.
type Game struct {
	players []*Player
	landed  [][]term.Color // zero color = empty cell
	score   int
	paused  bool
	flash   map[point]bool

	rng       *rand.Rand
	startedAt time.Time
	pausedAt  time.Time
	pausedFor time.Duration
}

// NewGame creates an empty game. Players join through AddPlayer.
func NewGame(seed int64) *Game {
	g := &Game{
		rng:       rand.New(rand.NewSource(seed)),
		flash:     make(map[point]bool),
		startedAt: time.Now(),
	}
	g.landed = make([][]term.Color, fieldHeight)
	for y := range g.landed {
		g.landed[y] = []term.Color{}
	}
	return g
}

// widthPerPlayer is wider alone than in company, like the original field.
func (g *Game) widthPerPlayer() int {
	if len(g.players) >= 2 {
		return 7
	}
	return 10
}

func (g *Game) width() int  { return g.widthPerPlayer() * len(g.players) }
func (g *Game) height() int { return fieldHeight }

// Score returns the shared score.
func (g *Game) Score() int { return g.score }

// Paused reports whether any player has paused the game.
func (g *Game) Paused() bool { return g.paused }

// TogglePause flips the shared pause state. The clock stops while paused.
func (g *Game) TogglePause() {
	if g.paused {
		g.pausedFor += time.Since(g.pausedAt)
	} else {
		g.pausedAt = time.Now()
	}
	g.paused = !g.paused
}

// Duration is the time played so far, excluding pauses.
func (g *Game) Duration() time.Duration {
	d := time.Since(g.startedAt) - g.pausedFor
	if g.paused {
		d -= time.Since(g.pausedAt)
	}
	return d
}

// Players returns the joined players in slice order.
func (g *Game) Players() []*Player { return g.players }

func (g *Game) player(id uint64) (int, *Player) {
	for i, p := range g.players {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

// AddPlayer joins a player mid-game or at the start. The field widens on
// the right; existing landed content stays put. Returns false when full.
func (g *Game) AddPlayer(id uint64, name string, color term.Color) bool {
	if len(g.players) >= MaxPlayers {
		return false
	}
	if _, p := g.player(id); p != nil {
		return true
	}
	p := &Player{ID: id, Name: name, Color: color}
	g.players = append(g.players, p)
	g.updateSpawnPoints()
	w := g.width()
	for y := range g.landed {
		for len(g.landed[y]) < w {
			g.landed[y] = append(g.landed[y], term.Color{})
		}
		g.landed[y] = g.landed[y][:w]
	}
	g.newBlock(p, false)
	return true
}

// RemovePlayer drops a player and wipes the columns the field loses, so no
// orphaned squares block the remaining players.
func (g *Game) RemovePlayer(id uint64) {
	i, p := g.player(id)
	if p == nil {
		return
	}
	sliceX := g.widthPerPlayer() * i
	oldWidth := g.width()
	g.players = append(g.players[:i], g.players[i+1:]...)
	newWidth := g.width()
	g.wipeColumns(sliceX, oldWidth-newWidth)
	g.updateSpawnPoints()
}

func (g *Game) updateSpawnPoints() {
	w := g.widthPerPlayer()
	for i, p := range g.players {
		p.spawnX = i*w + w/2
	}
}

func (g *Game) wipeColumns(left, count int) {
	right := left + count
	for y := range g.landed {
		row := g.landed[y]
		if right > len(row) {
			right = len(row)
		}
		g.landed[y] = append(row[:left], row[right:]...)
	}
}

func (g *Game) landedAt(p point) (term.Color, bool) {
	if p.x < 0 || p.y < 0 || p.x >= g.width() || p.y >= g.height() {
		return term.Color{}, false
	}
	c := g.landed[p.y][p.x]
	return c, c != term.Color{}
}

// occupied reports whether p holds a landed square or another player's
// falling block.
func (g *Game) occupied(p point, excludePlayer *Player) bool {
	if _, ok := g.landedAt(p); ok {
		return true
	}
	for _, other := range g.players {
		if other == excludePlayer || other.block == nil {
			continue
		}
		for _, q := range other.block.coords() {
			if q == p {
				return true
			}
		}
	}
	return false
}

// inBoundsFalling allows blocks above the visible top but clamps everything
// else to the field.
func (g *Game) inBoundsFalling(p point) bool {
	y := p.y
	if y < 0 {
		y = 0
	}
	return p.x >= 0 && p.x < g.width() && y < g.height()
}

func (g *Game) moveIfPossible(p *Player, dx, dy int) bool {
	if p.block == nil {
		return false
	}
	for _, c := range p.block.movedCoords(dx, dy) {
		if !g.inBoundsFalling(c) || g.occupied(c, p) {
			return false
		}
	}
	p.block.move(dx, dy)
	return true
}

func (g *Game) rotateIfPossible(p *Player) bool {
	if p.block == nil {
		return false
	}
	for _, c := range p.block.rotatedCoords(p.preferCCW) {
		if !g.inBoundsFalling(c) || g.occupied(c, p) {
			return false
		}
	}
	p.block.rotate(p.preferCCW)
	return true
}

// HandleKey applies one key press for the given player and reports whether
// the display changed. Unknown keys do nothing.
func (g *Game) HandleKey(id uint64, key term.Key) bool {
	_, p := g.player(id)
	if p == nil {
		return false
	}
	if key.Kind == term.KeyChar && (key.Ch == 'p' || key.Ch == 'P') {
		g.TogglePause()
		return true
	}
	if g.paused {
		return false
	}

	changed := false
	switch {
	case key.Kind == term.KeyDown || key.Ch == 's' || key.Ch == 'S':
		p.fastDown = true
		return false
	case key.Kind == term.KeyLeft || key.Ch == 'a' || key.Ch == 'A':
		changed = g.moveIfPossible(p, -1, 0)
	case key.Kind == term.KeyRight || key.Ch == 'd' || key.Ch == 'D':
		changed = g.moveIfPossible(p, 1, 0)
	case key.Kind == term.KeyUp || key.Ch == 'w' || key.Ch == 'W':
		changed = g.rotateIfPossible(p)
	case key.Ch == 'h' || key.Ch == 'H':
		changed = g.holdBlock(p)
	case key.Ch == 'r' || key.Ch == 'R':
		p.preferCCW = !p.preferCCW
		changed = true
	}
	p.fastDown = false
	return changed
}

func (g *Game) canPlace(p *Player, b *fallingBlock) bool {
	for _, c := range b.coords() {
		if g.occupied(c, p) {
			return false
		}
	}
	return true
}

// newBlock gives the player a fresh block, from hold when asked, from the
// preview queue otherwise. No room to spawn puts the player on a pending
// wait timer instead.
func (g *Game) newBlock(p *Player, fromHold bool) {
	var b *fallingBlock
	if fromHold && p.hold != nil {
		b = p.hold
		p.hold = nil
	} else {
		if p.next == nil {
			p.next = newFallingBlock(g.rng)
		}
		b = p.next
		p.next = newFallingBlock(g.rng)
	}
	b.spawnAt(p.spawnX, 0)
	if g.canPlace(p, b) {
		p.block = b
		p.timer = 0
		p.timerPending = false
	} else {
		p.block = nil
		p.timerPending = true
	}
	p.fastDown = false
}

func (g *Game) holdBlock(p *Player) bool {
	if p.block == nil || p.block.wasInHold {
		return false
	}
	toHold := p.block
	p.block = nil
	g.newBlock(p, true)
	toHold.wasInHold = true
	p.hold = toHold
	return true
}

// MoveBlocksDown advances gravity for every player whose fast-down state
// matches fast. Blocks that cannot move land; blocks with no room to land
// put their player on a pending wait timer. Reports whether the display
// changed.
func (g *Game) MoveBlocksDown(fast bool) bool {
	var moving []*Player
	for _, p := range g.players {
		if p.fastDown == fast && p.block != nil {
			moving = append(moving, p)
		}
	}

	changed := false
	// Loop so a block can drop into the space another block just left.
	for {
		before := len(moving)
		kept := moving[:0]
		for _, p := range moving {
			if g.moveIfPossible(p, 0, 1) {
				changed = true
			} else {
				kept = append(kept, p)
			}
		}
		moving = kept
		if len(moving) == before {
			break
		}
	}

	for _, p := range moving {
		if fast {
			p.fastDown = false
			continue
		}
		coords := p.block.coords()
		inField := true
		for _, c := range coords {
			if c.y < 0 || c.y >= g.height() || c.x < 0 || c.x >= g.width() {
				inField = false
				break
			}
		}
		if inField {
			for _, c := range coords {
				g.landed[c.y][c.x] = p.block.color
			}
			g.newBlock(p, false)
		} else {
			p.block = nil
			p.timerPending = true
		}
		changed = true
	}
	return changed
}

// FindFullRows returns every cell of every full row and adds the score for
// them, compensated for player count.
func (g *Game) FindFullRows() []point {
	var full []point
	count := 0
	for y, row := range g.landed {
		if len(row) == 0 {
			continue
		}
		isFull := true
		for _, c := range row {
			if (c == term.Color{}) {
				isFull = false
				break
			}
		}
		if isFull {
			count++
			for x := range row {
				full = append(full, point{x, y})
			}
		}
	}
	add := 5 * count * (count + 1)
	if n := len(g.players); n > 1 {
		add <<= n - 1
	}
	g.score += add
	return full
}

// RemoveFullRows deletes the given full rows and lets everything above
// them fall one row.
func (g *Game) RemoveFullRows(full []point) {
	fullRows := make(map[int]bool)
	for _, p := range full {
		if p.x == 0 {
			fullRows[p.y] = true
		}
	}
	for y := 0; y < len(g.landed); y++ {
		if !fullRows[y] {
			continue
		}
		for src := y; src > 0; src-- {
			copy(g.landed[src], g.landed[src-1])
		}
		for x := range g.landed[0] {
			g.landed[0][x] = term.Color{}
		}
	}
}

// StartPendingWaitTimers switches every just-blocked player onto the
// 30-second wait timer. The second return is true when every player is now
// waiting, which ends the game.
func (g *Game) StartPendingWaitTimers() (started []uint64, allWaiting bool) {
	for _, p := range g.players {
		if p.timerPending {
			p.timerPending = false
			p.timer = waitTimerSeconds
			started = append(started, p.ID)
		}
	}
	allWaiting = len(g.players) > 0
	for _, p := range g.players {
		if p.block != nil {
			allWaiting = false
			break
		}
	}
	return started, allWaiting
}

// TickWaitTimers counts every running wait timer down one second. A timer
// that reaches zero clears the player's own columns and spawns a fresh
// block. Reports whether anything changed.
func (g *Game) TickWaitTimers() bool {
	changed := false
	for i, p := range g.players {
		if p.timer == 0 {
			continue
		}
		changed = true
		p.timer--
		if p.timer > 0 {
			continue
		}
		w := g.widthPerPlayer()
		left, right := i*w, (i+1)*w
		for y := range g.landed {
			for x := left; x < right && x < len(g.landed[y]); x++ {
				g.landed[y][x] = term.Color{}
			}
		}
		g.newBlock(p, false)
	}
	return changed
}

// predictLanding returns where the player's block would come to rest, for
// the landing-place markers.
func (g *Game) predictLanding(p *Player) []point {
	if p.block == nil {
		return nil
	}
	dy := 0
	for {
		ok := true
		for _, c := range p.block.movedCoords(0, dy+1) {
			if !g.inBoundsFalling(c) || g.occupied(c, p) {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		dy++
	}
	return p.block.movedCoords(0, dy)
}

func (g *Game) setFlash(points []point, on bool) {
	g.flash = make(map[point]bool)
	if !on {
		return
	}
	for _, p := range points {
		g.flash[p] = true
	}
}

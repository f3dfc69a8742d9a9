package game

import (
	"testing"

	"github.com/cascadegame/cascade/pkg/term"
)

func TestFieldWidthFollowsPlayers(t *testing.T) {
	g := NewGame(1)
	if !g.AddPlayer(1, "alice", term.RedFg) {
		t.Fatal("first player rejected")
	}
	if got := g.width(); got != 10 {
		t.Fatalf("single-player width = %d, want 10", got)
	}
	if !g.AddPlayer(2, "bob", term.GreenFg) {
		t.Fatal("second player rejected")
	}
	if got := g.width(); got != 14 {
		t.Fatalf("two-player width = %d, want 14", got)
	}
	for y := range g.landed {
		if len(g.landed[y]) != 14 {
			t.Fatalf("row %d has %d cells, want 14", y, len(g.landed[y]))
		}
	}

	g.RemovePlayer(1)
	if got := g.width(); got != 10 {
		t.Fatalf("width after leave = %d, want 10", got)
	}
}

func TestAddPlayerCeiling(t *testing.T) {
	g := NewGame(1)
	for i := uint64(0); i < MaxPlayers; i++ {
		if !g.AddPlayer(i, "p", term.RedFg) {
			t.Fatalf("player %d rejected", i)
		}
	}
	if g.AddPlayer(99, "late", term.RedFg) {
		t.Fatal("player beyond the ceiling accepted")
	}
}

func TestBlocksLand(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "alice", term.RedFg)

	// Gravity until the first block lands: a fresh block appears at the
	// spawn point afterwards, and some cells are landed.
	for i := 0; i < 3*fieldHeight; i++ {
		g.MoveBlocksDown(false)
	}
	landed := 0
	for _, row := range g.landed {
		for _, c := range row {
			if (c != term.Color{}) {
				landed++
			}
		}
	}
	if landed == 0 {
		t.Fatal("nothing landed after repeated gravity")
	}
	if g.players[0].block == nil && !g.players[0].timerPending && g.players[0].timer == 0 {
		t.Fatal("player has neither a block nor a wait timer")
	}
}

func TestFullRowScoring(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "alice", term.RedFg)

	bottom := g.height() - 1
	for x := 0; x < g.width(); x++ {
		g.landed[bottom][x] = term.RedBg
	}
	g.landed[bottom-1][0] = term.BlueBg

	full := g.FindFullRows()
	if len(full) != g.width() {
		t.Fatalf("full cells = %d, want %d", len(full), g.width())
	}
	if g.Score() != 10 {
		t.Fatalf("score = %d, want 10 for one row", g.Score())
	}

	g.RemoveFullRows(full)
	for x := 1; x < g.width(); x++ {
		if (g.landed[bottom][x] != term.Color{}) {
			t.Fatalf("cell (%d,%d) not cleared", x, bottom)
		}
	}
	// The square above the cleared row fell one row.
	if g.landed[bottom][0] != term.BlueBg {
		t.Fatal("square above the cleared row did not fall")
	}
}

func TestMultiplayerScoreCompensation(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.AddPlayer(2, "b", term.GreenFg)

	bottom := g.height() - 1
	for x := 0; x < g.width(); x++ {
		g.landed[bottom][x] = term.RedBg
	}
	g.FindFullRows()
	if g.Score() != 20 {
		t.Fatalf("score = %d, want 10 doubled for two players", g.Score())
	}
}

func TestWaitTimerClearsOwnArea(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.AddPlayer(2, "b", term.GreenFg)
	p := g.players[0]

	// Litter both slices; put player one on an expiring timer.
	g.landed[5][2] = term.RedBg
	g.landed[5][9] = term.GreenBg
	p.block = nil
	p.timer = 1

	if !g.TickWaitTimers() {
		t.Fatal("tick reported no change")
	}
	if (g.landed[5][2] != term.Color{}) {
		t.Fatal("own slice not cleared when the timer expired")
	}
	if g.landed[5][9] != term.GreenBg {
		t.Fatal("neighbor slice was cleared too")
	}
	if p.block == nil {
		t.Fatal("no new block after the timer expired")
	}
}

func TestAllWaitingEndsGame(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.AddPlayer(2, "b", term.GreenFg)
	for _, p := range g.players {
		p.block = nil
		p.timerPending = true
	}

	started, allWaiting := g.StartPendingWaitTimers()
	if len(started) != 2 {
		t.Fatalf("started %d timers, want 2", len(started))
	}
	if !allWaiting {
		t.Fatal("every player waiting but game not flagged as over")
	}
}

func TestPauseBlocksMovement(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.HandleKey(1, term.Char('p'))
	if !g.Paused() {
		t.Fatal("p did not pause")
	}
	if g.HandleKey(1, term.Key{Kind: term.KeyLeft}) {
		t.Fatal("movement accepted while paused")
	}
	g.HandleKey(1, term.Char('p'))
	if g.Paused() {
		t.Fatal("second p did not resume")
	}
}

func TestHoldBlock(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	p := g.players[0]
	held := p.block

	if !g.HandleKey(1, term.Char('h')) {
		t.Fatal("hold rejected")
	}
	if p.hold != held {
		t.Fatal("block not in hold")
	}
	if p.block == nil || p.block == held {
		t.Fatal("no fresh block after holding")
	}
	// The held block cannot go back to hold.
	g.HandleKey(1, term.Char('h'))
	if g.HandleKey(1, term.Char('h')) {
		t.Fatal("re-holding a held block was accepted")
	}
}

func TestRotateModes(t *testing.T) {
	square := []point{{-1, 0}, {0, 0}, {0, -1}, {-1, -1}}
	if got := initialRotateMode(square); got != noRotating {
		t.Fatalf("O block rotate mode = %d, want noRotating", got)
	}
	bar := []point{{-2, 0}, {-1, 0}, {0, 0}, {1, 0}}
	if got := initialRotateMode(bar); got != nextCounterClockwiseThenBack {
		t.Fatalf("I block rotate mode = %d, want two-state", got)
	}
	ell := []point{{-1, 0}, {0, 0}, {1, 0}, {1, -1}}
	if got := initialRotateMode(ell); got != fullRotating {
		t.Fatalf("L block rotate mode = %d, want fullRotating", got)
	}
}

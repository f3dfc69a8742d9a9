package game

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cascadegame/cascade/pkg/term"
)

type countingRecorder struct {
	calls atomic.Int32
	last  atomic.Value
}

func (r *countingRecorder) Record(ctx context.Context, result Result) (int, error) {
	r.calls.Add(1)
	r.last.Store(result)
	return 1, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDriverFinishesExactlyOnce(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.AddPlayer(2, "b", term.GreenFg)
	// Every player simultaneously out of room: the next tick must end the
	// game.
	for _, p := range g.players {
		p.block = nil
		p.timerPending = true
	}

	rec := &countingRecorder{}
	d := NewDriver(g, rec, testLogger(), nil)
	defer d.Stop()

	ch := d.Attach(1)
	waitFor(t, 3*time.Second, d.Finished)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("observer not notified of the finish")
	}

	// Give any (wrong) extra ticks a chance to fire, then check the
	// terminal phase was entered once.
	time.Sleep(2 * gravityPeriod)
	if got := rec.calls.Load(); got != 1 {
		t.Fatalf("result recorded %d times, want 1", got)
	}

	result, rank, err := d.Result()
	if err != nil {
		t.Fatal(err)
	}
	if rank != 1 {
		t.Fatalf("rank = %d, want 1", rank)
	}
	if len(result.PlayerNames) != 2 {
		t.Fatalf("result has %d players, want 2", len(result.PlayerNames))
	}
}

func TestDriverCollapsesRefreshSignals(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.TogglePause() // freeze ticks so only our changes notify

	d := NewDriver(g, nil, testLogger(), nil)
	defer d.Stop()
	ch := d.Attach(7)

	for i := 0; i < 5; i++ {
		d.WithGame(func(g *Game) bool { return true })
	}

	// Exactly one pending signal no matter how many changes piled up.
	select {
	case <-ch:
	default:
		t.Fatal("no refresh signal pending")
	}
	select {
	case <-ch:
		t.Fatal("refresh signals did not collapse")
	default:
	}
}

func TestDriverTicksWithoutObservers(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	d := NewDriver(g, nil, testLogger(), nil)
	defer d.Stop()

	// No observer attached; gravity still advances the game.
	waitFor(t, 3*time.Second, func() bool {
		moved := false
		d.ReadGame(func(g *Game) {
			p := g.players[0]
			moved = p.block == nil || p.block.centerY > 0
		})
		return moved
	})
}

func TestDriverFlashVisibleToReaders(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	// A full bottom row: the next gravity tick must blink and clear it.
	for x := 0; x < g.width(); x++ {
		g.landed[g.height()-1][x] = term.RedFg
	}

	d := NewDriver(g, nil, testLogger(), nil)
	defer d.Stop()
	ch := d.Attach(1)

	sawFlash := false
	var maxBlock time.Duration
	deadline := time.Now().Add(3 * time.Second)
	for !sawFlash && time.Now().Before(deadline) {
		select {
		case <-ch:
		case <-time.After(20 * time.Millisecond):
		}
		start := time.Now()
		d.ReadGame(func(g *Game) {
			if len(g.flash) > 0 {
				sawFlash = true
			}
		})
		if blocked := time.Since(start); blocked > maxBlock {
			maxBlock = blocked
		}
	}
	if !sawFlash {
		t.Fatal("no flash frame was readable while rows cleared")
	}
	if maxBlock > 2*flashBlinkPeriod {
		t.Fatalf("ReadGame blocked %v during the flash", maxBlock)
	}
}

func TestDriverStoppedIsNotFinished(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	d := NewDriver(g, nil, testLogger(), nil)

	d.Stop()
	if !d.Stopped() {
		t.Fatal("Stopped() = false after Stop")
	}
	if d.Finished() {
		t.Fatal("stopped driver reports a finished game")
	}
}

// blockingRecorder holds the Record call until released, signalling entry.
type blockingRecorder struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRecorder) Record(ctx context.Context, result Result) (int, error) {
	close(r.entered)
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return 1, nil
}

func TestDriverSlowRecorderDoesNotBlockReaders(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.AddPlayer(2, "b", term.GreenFg)
	for _, p := range g.players {
		p.block = nil
		p.timerPending = true
	}

	rec := &blockingRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	d := NewDriver(g, rec, testLogger(), nil)

	select {
	case <-rec.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("recorder never called")
	}

	// The game is over and readable while the recorder is still busy.
	start := time.Now()
	d.ReadGame(func(g *Game) {})
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("ReadGame blocked %v while the recorder was busy", elapsed)
	}
	if !d.Finished() {
		t.Fatal("game not finished while recording")
	}

	close(rec.release)
	waitFor(t, 3*time.Second, func() bool {
		_, rank, _ := d.Result()
		return rank == 1
	})
	d.Stop()
}

func TestDriverStopIsIdempotent(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	d := NewDriver(g, nil, testLogger(), nil)
	d.Stop()
	d.Stop()
}

func TestDriverDetachStopsNotifications(t *testing.T) {
	g := NewGame(1)
	g.AddPlayer(1, "a", term.RedFg)
	g.TogglePause()

	d := NewDriver(g, nil, testLogger(), nil)
	defer d.Stop()

	ch := d.Attach(7)
	d.Detach(7)
	d.WithGame(func(g *Game) bool { return true })

	select {
	case <-ch:
		t.Fatal("detached observer still notified")
	default:
	}
}

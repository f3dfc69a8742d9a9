package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	gravityPeriod   = 400 * time.Millisecond
	fastDropPeriod  = 25 * time.Millisecond
	waitTimerPeriod = time.Second

	flashBlinkPeriod = 100 * time.Millisecond
	flashBlinkCount  = 4

	// recordTimeout bounds the results handoff so a slow scoreboard can
	// never wedge the driver.
	recordTimeout = 5 * time.Second

	// idleStopAfter shuts a driver down once it has run unobserved this
	// long. The normal teardown path is the lobby; this is the backstop.
	idleStopAfter = 30 * time.Second
)

// Result is the outcome of one finished game.
type Result struct {
	Score       int
	Duration    time.Duration
	PlayerNames []string
}

// Recorder stores a finished game's result. rank is the 1-based place on
// the scoreboard, or 0 when the result did not place.
type Recorder interface {
	Record(ctx context.Context, result Result) (rank int, err error)
}

// Driver owns a Game and is the only goroutine that advances it. Sessions
// interact through Attach/Detach, HandleKey, and the read-side accessors;
// every game mutation is serialized through the driver's lock, so ticks
// and key presses never overlap.
type Driver struct {
	logger   *slog.Logger
	recorder Recorder
	tickTime prometheus.Observer // may be nil

	mu        sync.Mutex
	game      *Game
	observers map[uint64]chan struct{}
	finished  bool
	result    Result
	rank      int
	recordErr error
	idleSince time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewDriver wraps game and starts its tick goroutine. recorder may be nil
// when results are not kept; tickTime may be nil.
func NewDriver(game *Game, recorder Recorder, logger *slog.Logger, tickTime prometheus.Observer) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		logger:    logger.With("component", "driver"),
		recorder:  recorder,
		tickTime:  tickTime,
		game:      game,
		observers: make(map[uint64]chan struct{}),
		idleSince: time.Now(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Attach registers an observer and returns its refresh channel. The channel
// has capacity one: overlapping refreshes collapse into a single pending
// signal and the observer re-reads current state when it gets around to it.
func (d *Driver) Attach(id uint64) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{}, 1)
	d.observers[id] = ch
	d.idleSince = time.Time{}
	return ch
}

// Detach removes an observer. The driver never contacts it again.
func (d *Driver) Detach(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, id)
	if len(d.observers) == 0 {
		d.idleSince = time.Now()
	}
}

// Stop ends the tick loop. Safe to call repeatedly and from any goroutine;
// it returns once the loop has exited.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
}

// Finished reports whether the game has reached its terminal phase.
func (d *Driver) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

// Stopped reports whether the tick loop has been told to exit. A stopped
// driver never advances again; lobbies must discard it instead of handing
// it to new players.
func (d *Driver) Stopped() bool {
	select {
	case <-d.stopCh:
		return true
	default:
		return false
	}
}

// Result returns the outcome, its scoreboard rank, and any recording error.
// Valid once Finished reports true.
func (d *Driver) Result() (Result, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.rank, d.recordErr
}

func (d *Driver) notifyLocked() {
	for _, ch := range d.observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// WithGame runs fn with exclusive access to the game, then refreshes
// observers if fn reports a change.
func (d *Driver) WithGame(fn func(g *Game) (changed bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return
	}
	// A mutation counts as activity while the game is unobserved.
	if !d.idleSince.IsZero() {
		d.idleSince = time.Now()
	}
	if fn(d.game) {
		d.notifyLocked()
	}
}

// ReadGame runs fn with shared access to game state for rendering.
func (d *Driver) ReadGame(fn func(g *Game)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.game)
}

func (d *Driver) run() {
	defer close(d.doneCh)

	gravity := time.NewTicker(gravityPeriod)
	fast := time.NewTicker(fastDropPeriod)
	waits := time.NewTicker(waitTimerPeriod)
	defer gravity.Stop()
	defer fast.Stop()
	defer waits.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-gravity.C:
			if d.step(false) {
				d.record()
				return
			}
		case <-fast.C:
			if d.step(true) {
				d.record()
				return
			}
		case <-waits.C:
			d.mu.Lock()
			if !d.idleSince.IsZero() && time.Since(d.idleSince) > idleStopAfter {
				d.mu.Unlock()
				d.logger.Info("stopping unobserved game")
				d.stopOnce.Do(func() { close(d.stopCh) })
				return
			}
			if !d.finished && !d.game.Paused() {
				if d.game.TickWaitTimers() {
					d.notifyLocked()
				}
			}
			d.mu.Unlock()
		}
	}
}

// step runs one gravity or fast-drop tick. Returns true when the game just
// finished and the loop should exit.
func (d *Driver) step(fast bool) bool {
	start := time.Now()
	d.mu.Lock()
	defer func() {
		d.mu.Unlock()
		if d.tickTime != nil {
			d.tickTime.Observe(time.Since(start).Seconds())
		}
	}()

	if d.finished || d.game.Paused() {
		return false
	}

	changed := d.game.MoveBlocksDown(fast)

	if full := d.game.FindFullRows(); len(full) > 0 {
		// Blink the cleared rows before removing them. The lock is
		// released around each sleep so observers can render the flash
		// frames and keys keep working while the rows blink.
		for i := 0; i < flashBlinkCount; i++ {
			d.game.setFlash(full, i%2 == 0)
			d.notifyLocked()
			d.mu.Unlock()
			time.Sleep(flashBlinkPeriod)
			d.mu.Lock()
		}
		d.game.setFlash(nil, false)
		d.game.RemoveFullRows(full)
		changed = true
	}

	if _, allWaiting := d.game.StartPendingWaitTimers(); allWaiting {
		d.finishLocked()
		return true
	}

	if changed {
		d.notifyLocked()
	}
	return false
}

// finishLocked moves the game into its terminal phase. Runs exactly once;
// the tick loop exits right after and hands the result to record.
func (d *Driver) finishLocked() {
	d.finished = true
	names := make([]string, 0, len(d.game.Players()))
	for _, p := range d.game.Players() {
		names = append(names, p.Name)
	}
	d.result = Result{
		Score:       d.game.Score(),
		Duration:    d.game.Duration(),
		PlayerNames: names,
	}
	d.logger.Info("game over",
		"score", d.result.Score,
		"duration", d.result.Duration,
		"players", len(names))
}

// record hands the finished result to the recorder and then wakes the
// observers. The recorder call runs outside the driver lock so a slow
// scoreboard cannot stall rendering or key handling.
func (d *Driver) record() {
	d.mu.Lock()
	result := d.result
	d.mu.Unlock()

	var rank int
	var recordErr error
	if d.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		rank, recordErr = d.recorder.Record(ctx, result)
		if recordErr != nil {
			d.logger.Error("recording result", "error", recordErr)
		}
	}

	d.mu.Lock()
	d.rank = rank
	d.recordErr = recordErr
	d.notifyLocked()
	d.mu.Unlock()
}

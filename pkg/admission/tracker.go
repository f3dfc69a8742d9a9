// Package admission enforces the per-address connection policy. It decides
// admit/reject at the instant a transport connects and tracks nothing about
// a connection beyond its source address.
package admission

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// ErrRejected means the source address is at its connection ceiling. There
// is no queueing; the client is told and disconnected.
var ErrRejected = errors.New("admission: too many connections from address")

// Config bounds connections per source address.
type Config struct {
	// MaxPerAddr is the live-connection ceiling per address.
	MaxPerAddr int

	// AbuseThreshold flags an address once it has opened this many
	// connections within AbuseWindow. Flagging is observational only; it
	// never changes the admit decision.
	AbuseThreshold int
	AbuseWindow    time.Duration
}

// DefaultConfig returns the production policy: five live connections per
// address, abuse flagged at five connects per minute.
func DefaultConfig() Config {
	return Config{
		MaxPerAddr:     5,
		AbuseThreshold: 5,
		AbuseWindow:    time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPerAddr <= 0 {
		c.MaxPerAddr = d.MaxPerAddr
	}
	if c.AbuseThreshold <= 0 {
		c.AbuseThreshold = d.AbuseThreshold
	}
	if c.AbuseWindow <= 0 {
		c.AbuseWindow = d.AbuseWindow
	}
	return c
}

type connectRecord struct {
	addr netip.Addr
	at   time.Time
}

// Tracker counts live connections per source address and recent connects
// for abuse flagging. Safe for concurrent use.
type Tracker struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	live   map[netip.Addr]int
	recent []connectRecord
	total  int

	now func() time.Time
}

// NewTracker creates a tracker. logger and metrics may be nil.
func NewTracker(cfg Config, logger *slog.Logger, metrics *Metrics) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "admission"),
		metrics: metrics,
		live:    make(map[netip.Addr]int),
		now:     time.Now,
	}
}

// Admit decides synchronously whether a new connection from addr may enter.
// On success the returned token is the connection's slot; releasing it is
// the only way the live count comes back down. On failure the error wraps
// ErrRejected and the tracker state is unchanged apart from the rolling
// connect window.
func (t *Tracker) Admit(addr netip.Addr) (*Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.pruneLocked(now)
	t.recent = append(t.recent, connectRecord{addr: addr, at: now})

	recentCount := 0
	for _, r := range t.recent {
		if r.addr == addr {
			recentCount++
		}
	}
	if recentCount >= t.cfg.AbuseThreshold {
		t.logger.Warn("rapid reconnects from address",
			"addr", addr.String(),
			"connects_in_window", recentCount,
			"window", t.cfg.AbuseWindow)
		if t.metrics != nil {
			t.metrics.AbuseFlags.Inc()
		}
	}

	if n := t.live[addr]; n >= t.cfg.MaxPerAddr {
		t.logger.Info("connection rejected", "addr", addr.String(), "live", n)
		if t.metrics != nil {
			t.metrics.Rejected.Inc()
		}
		return nil, fmt.Errorf("admission: %d other connections from the same address: %w", n, ErrRejected)
	}

	t.live[addr]++
	t.total++
	if t.metrics != nil {
		t.metrics.Admitted.Inc()
		t.metrics.Live.Inc()
	}
	t.logger.Info("connection admitted", "addr", addr.String(), "total", t.total)
	return &Token{tracker: t, addr: addr}, nil
}

// Total returns the number of live admitted connections.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// LiveFor returns the live connection count for one address.
func (t *Tracker) LiveFor(addr netip.Addr) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live[addr]
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.cfg.AbuseWindow)
	keep := t.recent[:0]
	for _, r := range t.recent {
		if r.at.After(cutoff) {
			keep = append(keep, r)
		}
	}
	t.recent = keep
}

func (t *Tracker) release(addr netip.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := t.live[addr]; n > 1 {
		t.live[addr] = n - 1
	} else {
		delete(t.live, addr)
	}
	t.total--
	if t.metrics != nil {
		t.metrics.Live.Dec()
	}
	t.logger.Info("connection released", "addr", addr.String(), "total", t.total)
}

// Token is one admitted connection's slot. Release returns the slot;
// calling it more than once is safe and counts once.
type Token struct {
	tracker *Tracker
	addr    netip.Addr
	once    sync.Once
}

// Addr is the address the slot was granted for.
func (tok *Token) Addr() netip.Addr { return tok.addr }

func (tok *Token) Release() {
	tok.once.Do(func() { tok.tracker.release(tok.addr) })
}

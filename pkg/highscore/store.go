// Package highscore keeps game results in a small versioned tab-separated
// file and serves the top results back for the results view.
package highscore

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cascadegame/cascade/pkg/game"
)

const (
	header   = "cascade high scores file v1"
	gameMode = "traditional"

	// TopCount is how many results per bucket make the board.
	TopCount = 5
)

// Entry is one recorded result.
type Entry struct {
	Score    int
	Duration time.Duration
	Players  []string
}

// Store is a file-backed scoreboard. Results split into two buckets, solo
// and multiplayer, because the multiplayer score compensation makes the
// numbers incomparable. Safe for concurrent use; the file is the source of
// truth and is re-read on every call.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store writing to path. The file appears on first
// Record.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "highscore")}
}

// Record appends the result and returns its 1-based place on the bucket's
// board, or 0 if it did not make the top. Implements game.Recorder.
func (s *Store) Record(ctx context.Context, result game.Result) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	if err := s.appendLocked(result); err != nil {
		return 0, err
	}

	entry := Entry{Score: result.Score, Duration: result.Duration, Players: result.PlayerNames}
	bucket := filterBucket(entries, len(result.PlayerNames) > 1)
	rank := 0
	for i, e := range bucket {
		if entry.Score > e.Score {
			rank = i + 1
			break
		}
	}
	if rank == 0 && len(bucket) < TopCount {
		rank = len(bucket) + 1
	}
	if rank > TopCount {
		rank = 0
	}
	s.logger.Info("result recorded", "score", result.Score, "rank", rank)
	return rank, nil
}

// Top returns the bucket's board, best first, at most TopCount entries.
func (s *Store) Top(multiplayer bool) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	bucket := filterBucket(entries, multiplayer)
	if len(bucket) > TopCount {
		bucket = bucket[:TopCount]
	}
	return bucket, nil
}

func filterBucket(entries []Entry, multiplayer bool) []Entry {
	var out []Entry
	for _, e := range entries {
		if (len(e.Players) > 1) == multiplayer {
			out = append(out, e)
		}
	}
	// Older results win ties, like insertion in file order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Store) readLocked() ([]Entry, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("highscore: open: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, scanner.Err()
	}
	if got := scanner.Text(); got != header {
		return nil, fmt.Errorf("highscore: unexpected header %q", got)
	}

	var entries []Entry
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		// mode, placeholder, score, duration seconds, then player names
		if len(parts) < 5 || parts[0] != gameMode {
			continue
		}
		score, err1 := strconv.Atoi(parts[2])
		secs, err2 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil {
			continue
		}
		entries = append(entries, Entry{
			Score:    score,
			Duration: time.Duration(secs) * time.Second,
			Players:  parts[4:],
		})
	}
	return entries, scanner.Err()
}

func (s *Store) appendLocked(result game.Result) error {
	_, statErr := os.Stat(s.path)
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("highscore: open for append: %w", err)
	}
	defer f.Close()

	if os.IsNotExist(statErr) {
		if _, err := fmt.Fprintln(f, header); err != nil {
			return fmt.Errorf("highscore: write header: %w", err)
		}
	}
	fields := append(
		[]string{gameMode, "-", strconv.Itoa(result.Score), strconv.Itoa(int(result.Duration.Seconds()))},
		result.PlayerNames...,
	)
	if _, err := fmt.Fprintln(f, strings.Join(fields, "\t")); err != nil {
		return fmt.Errorf("highscore: write entry: %w", err)
	}
	return nil
}

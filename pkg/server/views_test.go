package server

import (
	"testing"
	"time"

	"github.com/cascadegame/cascade/pkg/term"
)

func TestMenuNavigationSkipsSeparators(t *testing.T) {
	m := &menu{items: []string{"First", "", "Second", "Third"}}

	m.handleKey(term.Key{Kind: term.KeyDown})
	if m.selectedText() != "Second" {
		t.Errorf("after down: %q", m.selectedText())
	}
	m.handleKey(term.Key{Kind: term.KeyDown})
	if m.selectedText() != "Third" {
		t.Errorf("after second down: %q", m.selectedText())
	}
	m.handleKey(term.Key{Kind: term.KeyDown})
	if m.selectedText() != "Third" {
		t.Errorf("down at bottom moved: %q", m.selectedText())
	}
	m.handleKey(term.Key{Kind: term.KeyUp})
	m.handleKey(term.Key{Kind: term.KeyUp})
	if m.selectedText() != "First" {
		t.Errorf("after ups: %q", m.selectedText())
	}
	m.handleKey(term.Key{Kind: term.KeyUp})
	if m.selectedText() != "First" {
		t.Errorf("up at top moved: %q", m.selectedText())
	}
}

func TestMenuFirstLetterJump(t *testing.T) {
	m := &menu{items: []string{"New lobby", "Join an existing lobby", "Quit"}}
	m.handleKey(term.Char('q'))
	if m.selectedText() != "Quit" {
		t.Errorf("after 'q': %q", m.selectedText())
	}
	m.handleKey(term.Char('J'))
	if m.selectedText() != "Join an existing lobby" {
		t.Errorf("after 'J': %q", m.selectedText())
	}
}

func TestMenuEnter(t *testing.T) {
	m := &menu{items: []string{"Only"}}
	if m.handleKey(term.Char('x')) {
		t.Error("plain key reported enter")
	}
	if !m.handleKey(term.Key{Kind: term.KeyEnter}) {
		t.Error("enter not reported")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5sec"},
		{59 * time.Second, "59sec"},
		{60 * time.Second, "1min"},
		{150 * time.Second, "2min"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatPlayerNames(t *testing.T) {
	if got := formatPlayerNames([]string{"alice", "bob"}, 40); got != "alice, bob" {
		t.Errorf("short names: %q", got)
	}

	got := formatPlayerNames([]string{"verylongname", "anotherlongname"}, 20)
	if len([]rune(got)) >= 20 {
		t.Errorf("result too long: %q", got)
	}

	got = formatPlayerNames([]string{"aaaa", "bbbb", "cccc", "dddd", "eeee"}, 12)
	if len([]rune(got)) >= 12 {
		t.Errorf("crowded result too long: %q", got)
	}
}

func TestCenterPad(t *testing.T) {
	if got := centerPad("ab", 6); got != "  ab  " {
		t.Errorf("centerPad = %q", got)
	}
	if got := centerPad("abc", 6); got != " abc  " {
		t.Errorf("centerPad odd = %q", got)
	}
	if got := centerPad("toolong", 3); got != "toolong" {
		t.Errorf("centerPad overflow = %q", got)
	}
}

package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cascadegame/cascade/pkg/game"
	"github.com/cascadegame/cascade/pkg/highscore"
	"github.com/cascadegame/cascade/pkg/lobby"
	"github.com/cascadegame/cascade/pkg/screen"
	"github.com/cascadegame/cascade/pkg/term"
	"github.com/cascadegame/cascade/pkg/transport"
)

var asciiArt = []string{
	"",
	`  ___    __    ___   ___    __    ____   ____`,
	` / __)  /__\  / __) / __)  /__\  (  _ \ ( ___)`,
	`( (__  (    \ \__ \( (__  (    \  )(_) ) ) _)`,
	` \___) /__/\_\(___/ \___) /__/\_\(____/ (____)`,
	"https://github.com/cascadegame/cascade",
	"",
}

func drawASCIIArt(buf *screen.Buffer) {
	for y, line := range asciiArt {
		buf.DrawCenteredText(y, line, term.Color{})
	}
}

// menu is an arrow-navigated item list. Empty strings are separators.
type menu struct {
	items    []string
	selected int
}

func (m *menu) selectedText() string { return m.items[m.selected] }

func (m *menu) draw(buf *screen.Buffer, topY int) {
	for i, item := range m.items {
		if item == "" {
			continue
		}
		text := centerPad(item, 35)
		color := term.Color{}
		if i == m.selected {
			color = term.BlackOnWhite
		}
		buf.DrawCenteredText(topY+i, text, color)
	}
}

// handleKey moves the selection; true means enter was pressed. Typing a
// letter jumps to the first item starting with it.
func (m *menu) handleKey(key term.Key) bool {
	switch key.Kind {
	case term.KeyUp:
		for i := m.selected - 1; i >= 0; i-- {
			if m.items[i] != "" {
				m.selected = i
				break
			}
		}
	case term.KeyDown:
		for i := m.selected + 1; i < len(m.items); i++ {
			if m.items[i] != "" {
				m.selected = i
				break
			}
		}
	case term.KeyChar:
		ch := unicode.ToLower(key.Ch)
		for i, item := range m.items {
			if item != "" && unicode.ToLower([]rune(item)[0]) == ch {
				m.selected = i
				break
			}
		}
	case term.KeyEnter:
		return true
	}
	return false
}

func centerPad(text string, width int) string {
	n := len([]rune(text))
	if n >= width {
		return text
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-n-left)
}

// prompt runs a one-line text input. onEnter validates the trimmed text
// and returns a user-facing error message, empty on acceptance. Enter
// presses closer together than minEnterGap are dropped.
func (s *Session) prompt(label string, extra func(*screen.Buffer), minEnterGap time.Duration, onEnter func(text string) string) error {
	var (
		text         []rune
		errMsg       string
		enterPressed bool
	)
	var lastEnter time.Time

	s.setView(func(buf *screen.Buffer) {
		drawASCIIArt(buf)
		x := buf.DrawText(20, 10, label, term.Color{})
		x = buf.DrawText(x, 10, string(text), term.Color{})
		buf.SetCursor(x, 10)
		buf.DrawText(2, 13, errMsg, term.RedFg)
		if extra != nil {
			extra(buf)
		}
	})

	for {
		key, err := s.nextKey()
		if err != nil {
			return err
		}

		s.mu.Lock()
		switch key.Kind {
		case term.KeyChar:
			if key.Ch == '\n' && !enterPressed {
				// Enter arrived as bare \n: the client never put its
				// terminal into raw mode.
				errMsg = "Your terminal doesn't seem to be in raw mode. Run 'stty raw' and try again."
				break
			}
			if len(text) < s.srv.config.SessionConfig.NameMaxLength {
				text = append(text, key.Ch)
			}
		case term.KeyBackspace:
			if len(text) > 0 {
				text = text[:len(text)-1]
			}
		case term.KeyEnter:
			if !enterPressed || time.Since(lastEnter) > minEnterGap {
				enterPressed = true
				lastEnter = time.Now()
				errMsg = onEnter(strings.TrimSpace(string(text)))
				if errMsg == "" {
					s.mu.Unlock()
					return nil
				}
			}
		}
		s.mu.Unlock()
		s.requestRender()
	}
}

func drawNameAskingNotes(buf *screen.Buffer) {
	buf.DrawCenteredText(17, "If you play well, your name will be", term.Color{})
	buf.DrawCenteredText(18, "visible to everyone in the high scores.", term.Color{})
	buf.DrawCenteredText(20, "Your IP will be logged on the server only if you", term.Color{})
	buf.DrawCenteredText(21, "connect 5 or more times within the same minute.", term.Color{})
}

func (s *Session) askName() error {
	return s.prompt("Name: ", drawNameAskingNotes, 0, func(name string) string {
		if msg := validateName(name); msg != "" {
			return msg
		}
		if !s.srv.names.Claim(name) {
			return "This name is in use. Try a different name."
		}
		s.name = name
		return ""
	})
}

func (s *Session) askIfNewLobby() (bool, error) {
	m := &menu{items: []string{"New lobby", "Join an existing lobby", "Quit"}}

	s.setView(func(buf *screen.Buffer) {
		drawASCIIArt(buf)
		m.draw(buf, 10)
		buf.DrawCenteredText(18, "If you want to play alone, just make a new lobby.", term.Color{})
		buf.DrawCenteredText(20, "For multiplayer, one player makes a lobby and others join it.", term.Color{})
	})

	for {
		key, err := s.nextKey()
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		done := m.handleKey(key)
		s.mu.Unlock()
		s.requestRender()
		if done {
			switch m.selectedText() {
			case "New lobby":
				return true, nil
			case "Join an existing lobby":
				return false, nil
			default:
				return false, ErrQuit
			}
		}
	}
}

func (s *Session) askLobbyID() error {
	interval := s.srv.config.SessionConfig.LobbyJoinInterval
	return s.prompt("Lobby ID (6 characters): ", nil, interval, func(typed string) string {
		id := strings.ToUpper(typed)
		if !lobby.LooksLikeID(id) {
			return "The text you entered doesn't look like a lobby ID."
		}
		l, peer, err := s.srv.registry.Join(id, lobby.Peer{ID: s.id, Name: s.name})
		switch {
		case errors.Is(err, lobby.ErrNotFound):
			return fmt.Sprintf("There is no lobby with ID '%s'.", id)
		case errors.Is(err, lobby.ErrFull):
			return fmt.Sprintf("Lobby '%s' is full. It already has %d players.", id, lobby.MaxMembers)
		case err != nil:
			return "Joining the lobby failed. Try again."
		}
		s.lobby = l
		s.peer = peer
		return ""
	})
}

func (s *Session) drawLobbyStatus(buf *screen.Buffer) {
	l := s.lobby
	x := buf.DrawText(3, 2, "Lobby ID: ", term.Color{})
	if s.hideID {
		x = buf.DrawText(x, 2, "******", term.Color{})
		buf.DrawText(x, 2, " (press i to show)", term.GrayFg)
	} else {
		x = buf.DrawText(x, 2, l.ID(), term.Color{})
		buf.DrawText(x, 2, " (press i to hide)", term.GrayFg)
	}

	for i, member := range l.Members() {
		y := 5 + i
		x = buf.DrawText(6, y, fmt.Sprintf("%d. ", i+1), term.Color{})
		x = buf.DrawText(x, y, member.Name, member.Color)
		if member.ID == s.id {
			buf.DrawText(x, y, " (you)", term.GrayFg)
		}
	}
}

type gameChoice int

const (
	choicePlay gameChoice = iota
	choiceTips
)

func (s *Session) chooseGame(selected *int) (gameChoice, error) {
	gameItem := func() string {
		return fmt.Sprintf("Traditional game (%d/%d players)", s.lobby.PlayerCount(), game.MaxPlayers)
	}
	m := &menu{
		items:    []string{gameItem(), "", "Gameplay tips", "Quit"},
		selected: *selected,
	}
	changed := s.lobby.Changed(s.id)

	s.setView(func(buf *screen.Buffer) {
		s.drawLobbyStatus(buf)
		m.items[0] = gameItem()
		m.draw(buf, 13)
		if m.selected == 0 && s.lobby.PlayerCount() == game.MaxPlayers {
			buf.DrawCenteredText(21, "This game is full.", term.RedFg)
		}
	})

	for {
		select {
		case <-changed:
			s.requestRender()
			continue
		case key, ok := <-s.keys:
			if !ok {
				return 0, transport.ErrClosed
			}
			if key.Kind == term.KeyQuit {
				return 0, ErrQuit
			}
			if key.Kind == term.KeyChar && (key.Ch == 'i' || key.Ch == 'I') {
				s.mu.Lock()
				s.hideID = !s.hideID
				s.mu.Unlock()
				s.requestRender()
				continue
			}
			s.mu.Lock()
			done := m.handleKey(key)
			*selected = m.selected
			s.mu.Unlock()
			s.requestRender()
			if done {
				switch m.selectedText() {
				case "Gameplay tips":
					return choiceTips, nil
				case "Quit":
					return 0, ErrQuit
				default:
					return choicePlay, nil
				}
			}
		}
	}
}

var gameplayTips = []string{
	"",
	"Keys:",
	"  [W]/[A]/[S]/[D] or [↑]/[←]/[↓]/[→]: move and rotate (don't hold down [S] or [↓])",
	"  [H]: hold (aka save) block for later, switch to previously held block if any",
	"  [R]: change rotating direction",
	"  [P]: pause/unpause (affects all players)",
	"",
	"There's only one score. {You play together}, not against other players. Try to",
	"work together and make good use of everyone's blocks.",
	"",
	"With multiple players, when your playing area fills all the way to the top,",
	"you need to wait 30 seconds before you can continue playing. The game ends",
	"when all players are simultaneously on their 30 seconds waiting time. This",
	"means that if other players are doing well, you can {intentionally fill your",
	"playing area} to do your waiting time before others mess up.",
}

// drawMarkup renders text where [..] spans show magenta and {..} spans
// show cyan.
func drawMarkup(buf *screen.Buffer, x, y int, text string) {
	color := term.Color{}
	for _, ch := range text {
		switch ch {
		case '[':
			color = term.MagentaFg
		case '{':
			color = term.CyanFg
		case ']', '}':
			color = term.Color{}
		default:
			buf.SetCell(x, y, ch, color)
			x++
		}
	}
}

func (s *Session) showTips() error {
	m := &menu{items: []string{"Back to menu"}}

	s.setView(func(buf *screen.Buffer) {
		for y, line := range gameplayTips {
			drawMarkup(buf, 2, y, line)
		}
		m.draw(buf, 19)
	})

	for {
		key, err := s.nextKey()
		if err != nil {
			return err
		}
		s.mu.Lock()
		done := m.handleKey(key)
		s.mu.Unlock()
		s.requestRender()
		if done {
			return nil
		}
	}
}

// playGame joins the lobby's game and forwards input until the game
// finishes or the player leaves. A non-nil driver return means the game
// finished and results should be shown.
func (s *Session) playGame() (*game.Driver, error) {
	drv, err := s.lobby.JoinGame(s.peer)
	if errors.Is(err, lobby.ErrGameFull) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	notify := drv.Attach(s.id)
	s.mu.Lock()
	s.driver = drv
	s.mu.Unlock()
	lobbyID := s.lobby.ID()

	leave := func() {
		s.mu.Lock()
		s.driver = nil
		s.mu.Unlock()
		drv.Detach(s.id)
	}

	s.installView(func(buf *screen.Buffer) {
		drv.ReadGame(func(g *game.Game) {
			game.RenderTo(buf, g, s.id, lobbyID, s.hideID)
		})
	})

	for {
		select {
		case <-notify:
			if drv.Finished() {
				leave()
				s.lobby.NotifyChanged()
				return drv, nil
			}
			s.requestRender()

		case key, ok := <-s.keys:
			if !ok {
				leave()
				return nil, transport.ErrClosed
			}
			switch {
			case key.Kind == term.KeyQuit:
				leave()
				return nil, ErrQuit
			case key.Kind == term.KeyChar && (key.Ch == 'i' || key.Ch == 'I'):
				s.mu.Lock()
				s.hideID = !s.hideID
				s.mu.Unlock()
				s.requestRender()
			case key.Kind == term.KeyEnter:
				paused := false
				drv.ReadGame(func(g *game.Game) { paused = g.Paused() })
				if paused {
					leave()
					s.lobby.LeaveGame(s.id)
					return nil, nil
				}
			default:
				drv.WithGame(func(g *game.Game) bool {
					return g.HandleKey(s.id, key)
				})
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%dsec", seconds)
	}
	return fmt.Sprintf("%dmin", seconds/60)
}

// formatPlayerNames joins names with ", ", shortening the longest names
// with "..." until the result fits in maxLen cells.
func formatPlayerNames(names []string, maxLen int) string {
	limit := 0
	for _, name := range names {
		if n := len([]rune(name)); n > limit {
			limit = n
		}
	}
	for {
		var b strings.Builder
		for _, name := range names {
			if b.Len() > 0 {
				b.WriteString(", ")
			}
			runes := []rune(name)
			if len(runes) > limit {
				b.WriteString(string(runes[:limit-3]))
				b.WriteString("...")
			} else {
				b.WriteString(name)
			}
		}
		result := b.String()
		runes := []rune(result)
		if len(runes) < maxLen {
			return result
		}
		if limit <= 4 {
			return string(runes[:maxLen-4]) + "..."
		}
		limit--
	}
}

func drawGameOverMessage(buf *screen.Buffer, result game.Result, smile bool) {
	if smile {
		buf.DrawCenteredText(2, "Game over :)", term.Color{})
	} else {
		buf.DrawCenteredText(2, "Game over :(", term.Color{})
	}

	prefix := fmt.Sprintf("The game lasted %s and it ended with score ", formatDuration(result.Duration))
	score := fmt.Sprintf("%d", result.Score)
	x := (buf.Width() - len(prefix) - len(score) - 1) / 2
	x = buf.DrawText(x, 3, prefix, term.Color{})
	x = buf.DrawText(x, 3, score, term.CyanFg)
	buf.DrawText(x, 3, ".", term.Color{})
}

func drawHighScoreTable(buf *screen.Buffer, top []highscore.Entry, highlight int, multiplayer bool) {
	header := " HIGH SCORES: Traditional game with single player "
	columns := "| Score | Duration | Player"
	if multiplayer {
		header = " HIGH SCORES: Traditional game with multiplayer "
		columns = "| Score | Duration | Players"
	}
	buf.DrawText(0, 6, padEdges(header, '=', buf.Width()), term.Color{})
	buf.DrawText(0, 8, columns, term.Color{})

	separator := "|-------|----------|-"
	buf.DrawText(0, 9, separator+strings.Repeat("-", buf.Width()-len(separator)), term.Color{})

	for i, entry := range top {
		row := fmt.Sprintf("| %-6d| %-9s| %s",
			entry.Score,
			formatDuration(entry.Duration),
			formatPlayerNames(entry.Players, buf.Width()-len(separator)-1))
		color := term.Color{}
		if i == highlight {
			row += strings.Repeat(" ", max(0, buf.Width()-len([]rune(row))))
			color = term.GreenBg
		}
		buf.DrawText(0, 10+i, row, color)
	}
}

func padEdges(text string, pad rune, width int) string {
	n := len([]rune(text))
	if n >= width {
		return text
	}
	left := (width - n) / 2
	return strings.Repeat(string(pad), left) + text + strings.Repeat(string(pad), width-n-left)
}

func (s *Session) showResults(drv *game.Driver) error {
	result, rank, recErr := drv.Result()
	multiplayer := len(result.PlayerNames) >= 2

	top, topErr := s.srv.scores.Top(multiplayer)
	if topErr != nil {
		s.logger.Warn("reading high scores failed", "error", topErr)
	}

	s.setView(func(buf *screen.Buffer) {
		drawGameOverMessage(buf, result, rank > 0)
		if recErr != nil || topErr != nil {
			buf.DrawCenteredText(9, "High Scores Error", term.RedFg)
		} else {
			drawHighScoreTable(buf, top, rank-1, multiplayer)
		}
		buf.DrawCenteredText(19, "Press Enter to continue...", term.Color{})
	})

	for {
		key, err := s.nextKey()
		if err != nil {
			return err
		}
		if key.Kind == term.KeyEnter {
			return nil
		}
	}
}

package term

import "strconv"

// Fixed escape sequences. These are the only control strings the server ever
// sends besides the parameterized ones below.
const (
	ClearScreen        = "\x1b[2J"
	ClearToEndOfLine   = "\x1b[0K"
	ClearToEndOfScreen = "\x1b[0J"
	ShowCursor         = "\x1b[?25h"
	HideCursor         = "\x1b[?25l"
	ResetColors        = "\x1b[0m"
)

// MoveCursor returns the escape sequence that places the cursor at the
// zero-based coordinates (x, y). The wire format is one-based.
func MoveCursor(x, y int) string {
	return "\x1b[" + strconv.Itoa(y+1) + ";" + strconv.Itoa(x+1) + "H"
}

// ResizeTerminal returns the XTWINOPS directive asking the client terminal
// to resize itself to width x height cells.
func ResizeTerminal(width, height int) string {
	return "\x1b[8;" + strconv.Itoa(height) + ";" + strconv.Itoa(width) + "t"
}

// Color is a foreground/background pair from the fixed ANSI palette.
// A zero component means "leave at default".
type Color struct {
	Fg uint8
	Bg uint8
}

// Palette used by the renderer. Foregrounds are 31-36 plus bright black 90,
// backgrounds the corresponding 40s and 100.
var (
	DefaultColor = Color{}
	BlackOnWhite = Color{Fg: 30, Bg: 47}
	GrayFg       = Color{Fg: 90}
	GrayBg       = Color{Bg: 100}

	RedFg     = Color{Fg: 31}
	GreenFg   = Color{Fg: 32}
	YellowFg  = Color{Fg: 33}
	BlueFg    = Color{Fg: 34}
	MagentaFg = Color{Fg: 35}
	CyanFg    = Color{Fg: 36}

	RedBg     = Color{Bg: 41}
	GreenBg   = Color{Bg: 42}
	YellowBg  = Color{Bg: 43}
	BlueBg    = Color{Bg: 44}
	MagentaBg = Color{Bg: 45}
	CyanBg    = Color{Bg: 46}
	WhiteBg   = Color{Bg: 47}
)

// Escape returns the sequence that switches the terminal to this color.
// It always begins with a full reset so colors never leak between spans.
func (c Color) Escape() string {
	s := ResetColors
	if c.Fg != 0 {
		s += "\x1b[1;" + strconv.Itoa(int(c.Fg)) + "m"
	}
	if c.Bg != 0 {
		s += "\x1b[1;" + strconv.Itoa(int(c.Bg)) + "m"
	}
	return s
}

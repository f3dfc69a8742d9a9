package term

import "unicode/utf8"

// KeyKind identifies a decoded key press.
type KeyKind uint8

const (
	KeyChar KeyKind = iota
	KeyUp
	KeyDown
	KeyRight
	KeyLeft
	KeyBackspace
	KeyEnter
	KeyQuit
	KeyRefresh
)

// Key is a single decoded key press. Ch is meaningful only when Kind is
// KeyChar.
type Key struct {
	Kind KeyKind
	Ch   rune
}

// Convenience constructors used all over the session code and tests.
func Char(ch rune) Key { return Key{Kind: KeyChar, Ch: ch} }

func (k Key) String() string {
	switch k.Kind {
	case KeyUp:
		return "<up>"
	case KeyDown:
		return "<down>"
	case KeyRight:
		return "<right>"
	case KeyLeft:
		return "<left>"
	case KeyBackspace:
		return "<backspace>"
	case KeyEnter:
		return "<enter>"
	case KeyQuit:
		return "<quit>"
	case KeyRefresh:
		return "<refresh>"
	default:
		return string(k.Ch)
	}
}

const (
	normalBackspace  = 0x7f
	windowsBackspace = 0x08

	ctrlC = 0x03
	ctrlD = 0x04
	ctrlQ = 0x11
	ctrlR = 0x12
)

// DecodeKey decodes one key press from the front of data and returns it
// along with the number of bytes consumed. A zero byte count means the data
// is an incomplete prefix of a key press and more bytes are needed; callers
// keep the buffer and retry after the next read.
//
// Arrow keys are accepted in both their ANSI (ESC [ A..D) and legacy VT52
// (ESC A..D) forms. A byte that cannot start a valid UTF-8 sequence decodes
// as the replacement character and consumes one byte, so garbage input
// cannot wedge the stream.
func DecodeKey(data []byte) (Key, int) {
	if len(data) == 0 || (data[0] == 0x1b && len(data) == 1) ||
		(len(data) == 2 && data[0] == 0x1b && data[1] == '[') {
		return Key{}, 0
	}

	if len(data) >= 2 && data[0] == 0x1b {
		switch data[1] {
		case 'A':
			return Key{Kind: KeyUp}, 2
		case 'B':
			return Key{Kind: KeyDown}, 2
		case 'C':
			return Key{Kind: KeyRight}, 2
		case 'D':
			return Key{Kind: KeyLeft}, 2
		}
	}

	if len(data) >= 3 && data[0] == 0x1b && data[1] == '[' {
		switch data[2] {
		case 'A':
			return Key{Kind: KeyUp}, 3
		case 'B':
			return Key{Kind: KeyDown}, 3
		case 'C':
			return Key{Kind: KeyRight}, 3
		case 'D':
			return Key{Kind: KeyLeft}, 3
		}
	}

	switch data[0] {
	case '\r':
		return Key{Kind: KeyEnter}, 1
	case normalBackspace, windowsBackspace:
		return Key{Kind: KeyBackspace}, 1
	case ctrlC, ctrlD, ctrlQ:
		return Key{Kind: KeyQuit}, 1
	case ctrlR:
		return Key{Kind: KeyRefresh}, 1
	}

	r, size := utf8.DecodeRune(data)
	if r == utf8.RuneError && size == 1 {
		if !utf8.FullRune(data) {
			// Truncated multi-byte character, wait for the rest.
			return Key{}, 0
		}
		// data[0] can never begin a character. Consume it so the rest of
		// the buffer can still be decoded.
		return Key{Kind: KeyChar, Ch: utf8.RuneError}, 1
	}
	return Key{Kind: KeyChar, Ch: r}, size
}

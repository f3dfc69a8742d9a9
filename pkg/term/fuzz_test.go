package term

import "testing"

// FuzzDecodeKey tests that decoding arbitrary bytes doesn't panic and always
// makes progress on non-prefix input.
func FuzzDecodeKey(f *testing.F) {
	// Seed with every kind of key press
	f.Add([]byte("\x1b[A"))
	f.Add([]byte("\x1bB"))
	f.Add([]byte("\r"))
	f.Add([]byte("\x7f"))
	f.Add([]byte("\x03"))
	f.Add([]byte("\x12"))
	f.Add([]byte("€"))
	f.Add([]byte("\xe2\x82"))
	f.Add([]byte("\x82\xac"))
	f.Add([]byte("hello\x1b[Bworld"))

	f.Fuzz(func(t *testing.T, data []byte) {
		for len(data) > 0 {
			_, n := DecodeKey(data)
			if n == 0 {
				// Only valid as "need more bytes": the whole remainder must
				// be a prefix of an escape sequence or a UTF-8 character.
				if len(data) > 4 {
					t.Fatalf("no progress with %d bytes buffered", len(data))
				}
				return
			}
			if n < 0 || n > len(data) {
				t.Fatalf("consumed %d of %d bytes", n, len(data))
			}
			data = data[n:]
		}
	})
}

// Package term implements the terminal wire codec for cascade.
//
// It covers both directions of the protocol:
//
//   - Client → server: incremental decoding of key presses from a raw byte
//     stream. Escape sequences and multi-byte UTF-8 characters may be split
//     across reads, so DecodeKey distinguishes "incomplete, need more bytes"
//     from "decoded" and reports how many bytes each key consumed.
//   - Server → client: the restricted ANSI escape subset used for rendering.
//     Clear operations, absolute cursor positioning, the 16-color palette
//     with bright variants, cursor visibility, and the terminal resize
//     directive. Nothing outside this subset is ever emitted.
//
// The codec is identical over raw TCP and websocket transports; only the
// framing differs.
package term

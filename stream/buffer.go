// Package stream accumulates the bytes a remote shell sends back into decoded text.
package stream

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DecodeError reports a chunk that is not valid UTF-8. The buffer is left untouched.
type DecodeError struct {
	Offset int  // offset of the bad byte inside the rejected chunk
	Byte   byte // the bad byte itself
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid utf-8 byte 0x%02x at offset %d", e.Byte, e.Offset)
}

// Buffer holds the text received for a single command invocation.
type Buffer struct {
	text    strings.Builder
	partial []byte // trailing bytes of a rune that was split across chunks
}

// Append decodes chunk and adds it to the buffer. A rune split between two chunks is held
// back until its remaining bytes arrive.
func (b *Buffer) Append(chunk []byte) error {
	data := chunk
	if len(b.partial) > 0 {
		data = make([]byte, 0, len(b.partial)+len(chunk))
		data = append(data, b.partial...)
		data = append(data, chunk...)
	}

	cut := incompleteTail(data)
	complete := data[:cut]
	if !utf8.Valid(complete) {
		// a held-back prefix that turns out invalid is blamed on the first byte of chunk
		off := invalidOffset(complete) - len(b.partial)
		if off < 0 {
			off = 0
		}
		return &DecodeError{Offset: off, Byte: chunk[off]}
	}

	b.text.Write(complete)
	b.partial = append(b.partial[:0], data[cut:]...)
	return nil
}

// String returns everything decoded so far.
func (b *Buffer) String() string {
	return b.text.String()
}

// Len is the length in bytes of the decoded text.
func (b *Buffer) Len() int {
	return b.text.Len()
}

// LastNonEmptyLine returns the last line holding anything but whitespace, trimmed.
func (b *Buffer) LastNonEmptyLine() string {
	return LastNonEmptyLine(b.text.String())
}

// LastNonEmptyLine is the same lookup over arbitrary text. Both '\r' and '\n' end a line.
func LastNonEmptyLine(s string) string {
	for len(s) > 0 {
		i := strings.LastIndexAny(s, "\r\n")
		line := strings.TrimSpace(s[i+1:])
		if line != "" {
			return line
		}
		if i < 0 {
			break
		}
		s = s[:i]
	}
	return ""
}

// Reset drops all state so the next command starts from an empty buffer.
func (b *Buffer) Reset() {
	b.text.Reset()
	b.partial = b.partial[:0]
}

// incompleteTail returns the index where a trailing, not yet complete rune starts,
// or len(p) when p does not end in the middle of a rune.
func incompleteTail(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax+1; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return len(p)
		}
		return i
	}
	return len(p)
}

func invalidOffset(p []byte) int {
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRune(p[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return 0
}

package core

// stream.go provides the reader stack under the delimited-text row source:
//
//   - utf8SanitizeReader: replaces invalid UTF-8 bytes with '?' on the fly
//   - countingReader: tracks bytes read for byte-based progress
//
// Both operate in O(buffer) memory so arbitrarily large catalog files never
// get materialized. BOM skipping happens in the row source via bufio.Peek.

import (
	"io"
	"unicode/utf8"
)

// utf8SanitizeReader wraps an io.Reader and replaces invalid UTF-8
// sequences with '?' as data streams through. Multi-byte sequences split
// across Read calls are carried over via a small pending buffer.
type utf8SanitizeReader struct {
	reader  io.Reader
	pending []byte
}

func newUTF8SanitizeReader(r io.Reader) *utf8SanitizeReader {
	return &utf8SanitizeReader{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8SanitizeReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset

	if n == 0 {
		return 0, err
	}

	// Fast path: pure ASCII needs no sanitizing
	if allASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of valid bytes.
// When not at EOF, an incomplete trailing sequence is deferred to the next
// Read instead of being mangled.
func (s *utf8SanitizeReader) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if r == utf8.RuneError && size == 1 {
			rest := data[read:]
			if !atEOF && len(rest) < utf8.UTFMax && utf8.RuneStart(rest[0]) && !utf8.FullRune(rest) {
				// Possibly split multi-byte sequence; hold it back
				s.pending = append(s.pending, rest...)
				return write
			}
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

func allASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// countingReader wraps an io.Reader to track bytes read against a known
// total, for byte-based progress when row totals are unknown up front.
type countingReader struct {
	reader io.Reader
	read   int64
	total  int64
}

func newCountingReader(r io.Reader, total int64) *countingReader {
	return &countingReader{reader: r, total: total}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.read += int64(n)
	return n, err
}

// percent returns read progress as 0-100, or 0 if the total is unknown.
func (c *countingReader) percent() int {
	if c.total <= 0 {
		return 0
	}
	p := int(c.read * 100 / c.total)
	if p > 100 {
		p = 100
	}
	return p
}

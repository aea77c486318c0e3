package core

// streaming.go provides the reader stack an import body passes through before
// it reaches the line reassembler:
//
//   - BOMSkippingReader drops a leading UTF-8 byte order mark
//   - UTF8Sanitizer optionally replaces invalid UTF-8 bytes with '?'
//   - CountingReader tracks bytes read for progress reporting
//
// Every stage works on the caller's buffer, so memory stays O(buffer size)
// regardless of body size. Use WrapForImport to build the stack.

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader removes a UTF-8 BOM from the start of a stream.
type BOMSkippingReader struct {
	r       io.Reader
	checked bool
	head    []byte // bytes read during the check that are not a BOM
	err     error  // error seen during the check, returned after head
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: r}
}

// Read implements io.Reader.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, buf)
		if !bytes.Equal(buf[:n], utf8BOM) {
			b.head = buf[:n]
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		b.err = err
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces bytes that are not valid UTF-8 with '?'. A multi-byte
// sequence split across reads is carried to the next read intact.
type UTF8Sanitizer struct {
	r     io.Reader
	carry []byte
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r, carry: make([]byte, 0, utf8.UTFMax)}
}

// Read implements io.Reader. p must hold at least utf8.UTFMax bytes.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	off := copy(p, s.carry)
	s.carry = s.carry[:0]

	n, err := s.r.Read(p[off:])
	n += off
	data := p[:n]

	end := n
	if err == nil {
		end -= incompleteTail(data)
		s.carry = append(s.carry, data[end:]...)
	}
	return sanitizeInPlace(data[:end]), err
}

// incompleteTail returns how many trailing bytes of data start a multi-byte
// sequence that is not finished yet.
func incompleteTail(data []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		c := data[len(data)-i]
		if c < 0x80 {
			return 0
		}
		if c >= 0xC0 {
			if seqLen(c) > i {
				return i
			}
			return 0
		}
	}
	return 0
}

func seqLen(c byte) int {
	switch {
	case c >= 0xF0:
		return 4
	case c >= 0xE0:
		return 3
	case c >= 0xC0:
		return 2
	default:
		return 1
	}
}

// sanitizeInPlace rewrites data so every invalid byte becomes '?' and returns
// the resulting length, which never exceeds len(data).
func sanitizeInPlace(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}
	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		w += copy(data[w:], data[r:r+size])
		r += size
	}
	return w
}

// CountingReader tracks bytes read. BytesRead is safe to call from another
// goroutine while reads are in progress.
type CountingReader struct {
	r io.Reader
	n atomic.Int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n.Load()
}

// WrapForImport builds the import reader stack. BOM stripping always runs
// first; sanitizing is opt-in because it alters record content.
func WrapForImport(r io.Reader, sanitize bool) *CountingReader {
	r = NewBOMSkippingReader(r)
	if sanitize {
		r = NewUTF8Sanitizer(r)
	}
	return NewCountingReader(r)
}

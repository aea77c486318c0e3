package jsonlines

// linereader.go reassembles '\n'-terminated records from a chunked byte source.
//
// The raw buffer is a fixed window over the source. The line buffer collects
// the bytes of the current record across as many refills as it takes. Only
// '\n' terminates a record; '\r' is ordinary content.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultRawBufSize is the raw buffer capacity used when none is given.
const DefaultRawBufSize = 64 * 1024

// RawBuffer is a fixed-capacity window refilled from a byte source on demand.
type RawBuffer struct {
	src    io.Reader
	buf    []byte
	index  int // read cursor
	length int // valid bytes in buf

	bytesProcessed int64
	droppedBytes   int64
}

// NewRawBuffer returns a raw buffer of the given capacity over src.
// A non-positive size selects DefaultRawBufSize.
func NewRawBuffer(src io.Reader, size int) *RawBuffer {
	if size <= 0 {
		size = DefaultRawBufSize
	}
	return &RawBuffer{
		src: src,
		buf: make([]byte, size),
	}
}

// Remaining returns the number of unread valid bytes.
func (r *RawBuffer) Remaining() int {
	return r.length - r.index
}

// BytesProcessed returns the total number of bytes read from the source.
func (r *RawBuffer) BytesProcessed() int64 {
	return r.bytesProcessed
}

// DroppedBytes returns the size of an unterminated trailing fragment that was
// discarded at end of input, or 0.
func (r *RawBuffer) DroppedBytes() int64 {
	return r.droppedBytes
}

// refill loads the next chunk. It returns 0 only at end of input.
func (r *RawBuffer) refill() (int, error) {
	n, err := io.ReadAtLeast(r.src, r.buf, 1)
	r.index = 0
	r.length = n
	r.bytesProcessed += int64(n)

	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	return n, nil
}

// LineBuffer accumulates the bytes of one record. It is reset at the start of
// every ReadLine call and reused across records.
type LineBuffer struct {
	buf []byte
}

// Reset empties the buffer and keeps its capacity.
func (l *LineBuffer) Reset() {
	l.buf = l.buf[:0]
}

// Bytes returns the current record. The slice is only valid until the next
// ReadLine call.
func (l *LineBuffer) Bytes() []byte {
	return l.buf
}

// Len returns the number of bytes in the current record.
func (l *LineBuffer) Len() int {
	return len(l.buf)
}

func (l *LineBuffer) append(p []byte) {
	l.buf = append(l.buf, p...)
}

// ReadLine reassembles the next record into line, without its terminator.
//
// It returns true when a complete record is available and false at end of
// input. At end of input line is empty: a trailing fragment without '\n' is
// discarded and reported through raw.DroppedBytes.
func ReadLine(raw *RawBuffer, line *LineBuffer) (bool, error) {
	line.Reset()

	for {
		if raw.Remaining() <= 0 {
			n, err := raw.refill()
			if err != nil {
				return false, err
			}
			if n == 0 {
				if line.Len() > 0 {
					raw.droppedBytes += int64(line.Len())
					line.Reset()
				}
				return false, nil
			}
		}

		valid := raw.buf[raw.index:raw.length]
		i := bytes.IndexByte(valid, '\n')
		if i < 0 {
			line.append(valid)
			raw.index = raw.length
			continue
		}

		line.append(valid[:i])
		raw.index += i + 1
		return true, nil
	}
}

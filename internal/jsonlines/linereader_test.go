package jsonlines

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.Reader, size int) ([]string, *RawBuffer) {
	t.Helper()
	raw := NewRawBuffer(r, size)
	var line LineBuffer
	var got []string
	for {
		more, err := ReadLine(raw, &line)
		require.NoError(t, err)
		if !more {
			assert.Zero(t, line.Len(), "line buffer must be empty at end of input")
			return got, raw
		}
		got = append(got, string(line.Bytes()))
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		dropped int64
	}{
		{"empty input", "", nil, 0},
		{"single record", "{\"a\":1}\n", []string{`{"a":1}`}, 0},
		{"three records", "a\nbb\nccc\n", []string{"a", "bb", "ccc"}, 0},
		{"empty lines", "\n\nx\n", []string{"", "", "x"}, 0},
		{"carriage return kept", "a\r\nb\r\n", []string{"a\r", "b\r"}, 0},
		{"lone carriage return", "a\rb\n", []string{"a\rb"}, 0},
		{"trailing fragment dropped", "a\nbcd", []string{"a"}, 3},
		{"only fragment", "abc", nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, raw := readAll(t, strings.NewReader(tt.input), 0)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.dropped, raw.DroppedBytes())
			assert.Equal(t, int64(len(tt.input)), raw.BytesProcessed())
		})
	}
}

func TestReadLine_RefillBoundaryIndependent(t *testing.T) {
	input := strings.Repeat(`{"id": 1, "name": "a fairly long name to span buffers"}`+"\n", 50) +
		"\n" + `{"tail": true}` + "\n"

	want, _ := readAll(t, strings.NewReader(input), len(input)+1)
	require.Len(t, want, 52)

	readers := map[string]func() io.Reader{
		"one byte": func() io.Reader { return iotest.OneByteReader(strings.NewReader(input)) },
		"half":     func() io.Reader { return iotest.HalfReader(strings.NewReader(input)) },
		"data err": func() io.Reader { return iotest.DataErrReader(strings.NewReader(input)) },
	}

	for _, size := range []int{1, 2, 7, 64, 4096} {
		for name, mk := range readers {
			got, _ := readAll(t, mk(), size)
			assert.Equal(t, want, got, "size=%d reader=%s", size, name)
		}
	}
}

func TestReadLine_NRecordsThenEOF(t *testing.T) {
	for n := 0; n < 20; n++ {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteString(`{"n":` + strings.Repeat("9", i+1) + "}\n")
		}

		raw := NewRawBuffer(strings.NewReader(sb.String()), 5)
		var line LineBuffer
		reads := 0
		for {
			more, err := ReadLine(raw, &line)
			require.NoError(t, err)
			if !more {
				break
			}
			reads++
		}
		assert.Equal(t, n, reads)

		// End of input is sticky.
		more, err := ReadLine(raw, &line)
		require.NoError(t, err)
		assert.False(t, more)
	}
}

func TestReadLine_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	r := io.MultiReader(strings.NewReader("ok\npart"), iotest.ErrReader(boom))

	raw := NewRawBuffer(r, 4)
	var line LineBuffer

	more, err := ReadLine(raw, &line)
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, "ok", string(line.Bytes()))

	_, err = ReadLine(raw, &line)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.ErrorIs(t, err, boom)
}

package jsonlines

import (
	"errors"
	"fmt"
	"io"
)

// RowSerializer renders a whole row as one JSON object. Keys are the schema's
// column names in order; the serializer decides how each value is rendered.
// The output must not contain a raw '\n'.
type RowSerializer interface {
	AppendRow(dst []byte, schema Schema, values []any) ([]byte, error)
}

// ToState is the per-transfer state of an export.
type ToState struct {
	w      io.Writer
	ser    RowSerializer
	schema Schema
	buf    []byte

	rows    int64
	written int64
}

// NewToState prepares an export writing to w.
func NewToState(w io.Writer, ser RowSerializer) *ToState {
	return &ToState{w: w, ser: ser}
}

// Rows returns the number of records written.
func (st *ToState) Rows() int64 { return st.rows }

// BytesWritten returns the number of bytes flushed to the sink.
func (st *ToState) BytesWritten() int64 { return st.written }

type toRoutine struct{}

func (toRoutine) Direction() Direction { return DirectionTo }

func (toRoutine) OutFunc(col *Column) error {
	if col.Name == "" {
		return errors.New("column has no name")
	}
	return nil
}

func (toRoutine) Start(st *ToState, schema Schema) error {
	if st.ser == nil {
		return errors.New("export has no row serializer")
	}
	st.schema = schema
	return nil
}

func (toRoutine) OneRow(st *ToState, values []any) error {
	if len(values) != len(st.schema) {
		return fmt.Errorf("row has %d values, schema has %d columns", len(values), len(st.schema))
	}

	buf, err := st.ser.AppendRow(st.buf[:0], st.schema, values)
	if err != nil {
		return fmt.Errorf("row %d: %w", st.rows+1, err)
	}
	buf = append(buf, '\n')
	st.buf = buf

	n, err := st.w.Write(buf)
	st.written += int64(n)
	if err != nil {
		return fmt.Errorf("write row %d: %w", st.rows+1, err)
	}
	st.rows++
	return nil
}

func (toRoutine) End(*ToState) error {
	return nil
}

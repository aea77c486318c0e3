package jsonlines

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// FromOptions configures an import.
type FromOptions struct {
	// BufferSize is the raw buffer capacity. Zero selects DefaultRawBufSize.
	BufferSize int
	// Errors selects stop or ignore mode. Nil means stop.
	Errors *ErrorContext
	// Logger receives skipped-row and dropped-fragment reports. Nil discards.
	Logger *slog.Logger
}

// FromState is the per-transfer state of an import.
type FromState struct {
	raw    *RawBuffer
	line   LineBuffer
	schema Schema
	errs   *ErrorContext
	logger *slog.Logger

	lineNo  int64
	text    []byte
	started bool
	warned  bool
}

// NewFromState prepares an import reading from src.
func NewFromState(src io.Reader, opts FromOptions) *FromState {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FromState{
		raw:    NewRawBuffer(src, opts.BufferSize),
		errs:   opts.Errors,
		logger: logger,
	}
}

// Line returns the number of complete records read so far.
func (st *FromState) Line() int64 { return st.lineNo }

// BytesProcessed returns the number of bytes read from the source.
func (st *FromState) BytesProcessed() int64 { return st.raw.BytesProcessed() }

// DroppedBytes returns the size of a discarded unterminated trailing fragment.
func (st *FromState) DroppedBytes() int64 { return st.raw.DroppedBytes() }

// Errors returns the error context, which may be nil.
func (st *FromState) Errors() *ErrorContext { return st.errs }

// Schema returns the schema given to Start.
func (st *FromState) Schema() Schema { return st.schema }

type fromRoutine struct{}

func (fromRoutine) Direction() Direction { return DirectionFrom }

func (fromRoutine) InFunc(col *Column, resolve InputResolver) error {
	if resolve == nil {
		return fmt.Errorf("column %q: no input resolver", col.Name)
	}
	fn, err := resolve(col.TypeOID)
	if err != nil {
		return fmt.Errorf("column %q: %w", col.Name, err)
	}
	col.Input = fn
	return nil
}

func (fromRoutine) Start(st *FromState, schema Schema) error {
	for _, col := range schema {
		if col.Input == nil {
			return fmt.Errorf("column %q has no input function", col.Name)
		}
	}
	st.schema = schema
	st.line.Reset()
	st.lineNo = 0
	st.started = true
	return nil
}

func (fromRoutine) OneRow(st *FromState, values []any, nulls []bool) (RowResult, error) {
	if !st.started {
		return RowEOF, errors.New("import not started")
	}
	if len(values) != len(st.schema) || len(nulls) != len(st.schema) {
		return RowEOF, fmt.Errorf("row has %d values and %d null flags, schema has %d columns",
			len(values), len(nulls), len(st.schema))
	}

	more, err := ReadLine(st.raw, &st.line)
	if err != nil {
		return RowEOF, err
	}
	if !more {
		st.reportDropped()
		return RowEOF, nil
	}
	st.lineNo++

	tree, err := Decode(st.line.Bytes())
	if err != nil {
		return st.fail(values, nulls, &RecordError{Line: st.lineNo, Err: err})
	}

	for i := range st.schema {
		col := &st.schema[i]

		field, ok := Lookup(tree, col.Name)
		if !ok || field.IsNull() {
			values[i] = nil
			nulls[i] = true
			continue
		}

		st.text, err = field.AppendText(st.text[:0])
		if err != nil {
			return st.fail(values, nulls, &RecordError{Line: st.lineNo, Column: col.Name, Err: err})
		}

		v, err := col.Input(string(st.text), col.TypeMod, st.errs)
		if err != nil {
			if !errors.Is(err, ErrConversion) {
				err = fmt.Errorf("%w: %w", ErrConversion, err)
			}
			return st.fail(values, nulls, &RecordError{Line: st.lineNo, Column: col.Name, Err: err})
		}
		values[i] = v
		nulls[i] = false
	}

	return RowOK, nil
}

func (fromRoutine) End(st *FromState) error {
	st.started = false
	return nil
}

// fail clears the row and classifies the failure. A nil error means the row
// was recorded and skipped.
func (st *FromState) fail(values []any, nulls []bool, rerr *RecordError) (RowResult, error) {
	for i := range values {
		values[i] = nil
		nulls[i] = true
	}

	if err := st.errs.classify(rerr, st.line.Bytes()); err != nil {
		return RowEOF, err
	}

	st.logger.Debug("skipped row",
		"line", rerr.Line,
		"column", rerr.Column,
		"error", rerr.Err,
	)
	return RowSkipped, nil
}

func (st *FromState) reportDropped() {
	if st.warned || st.raw.DroppedBytes() == 0 {
		return
	}
	st.warned = true
	st.logger.Warn("dropped unterminated trailing record",
		"after_line", st.lineNo,
		"bytes", st.raw.DroppedBytes(),
	)
}

package jsonlines

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedRecord is returned when a line is not a single valid JSON value.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrConversion is returned when a column input function rejects a value.
	ErrConversion = errors.New("conversion failure")

	// ErrUnrecognizedValueKind means a value tree holds a kind this package
	// does not know how to render. It is never recoverable.
	ErrUnrecognizedValueKind = errors.New("unrecognized value kind")

	// ErrSourceRead wraps I/O failures of the byte source. Never recoverable.
	ErrSourceRead = errors.New("source read failure")
)

// OnError selects what happens to a row that fails to convert.
type OnError int

const (
	// OnErrorStop aborts the transfer on the first failing row.
	OnErrorStop OnError = iota
	// OnErrorIgnore skips failing rows and records a diagnostic for each.
	OnErrorIgnore
)

// String returns the option value as accepted by ParseOnError.
func (o OnError) String() string {
	switch o {
	case OnErrorStop:
		return "stop"
	case OnErrorIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("OnError(%d)", int(o))
	}
}

// ParseOnError parses "stop" or "ignore" (case-insensitive).
func ParseOnError(s string) (OnError, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stop":
		return OnErrorStop, nil
	case "ignore":
		return OnErrorIgnore, nil
	default:
		return OnErrorStop, fmt.Errorf("invalid on_error value %q (want stop or ignore)", s)
	}
}

// RecordError locates a failure at a line and, when known, a column.
type RecordError struct {
	Line   int64  // 1-based record number
	Column string // empty for whole-record failures
	Err    error
}

func (e *RecordError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Diagnostic describes one skipped row.
type Diagnostic struct {
	Line   int64  `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
	Data   string `json:"data,omitempty"`
}

// DefaultMaxDiagnostics caps how many diagnostics an ErrorContext keeps.
// Rows beyond the cap are still skipped and counted.
const DefaultMaxDiagnostics = 1000

// maxDiagnosticData truncates the raw record kept in a Diagnostic.
const maxDiagnosticData = 1024

// ErrorContext carries the bulk-error-collection mode through every fallible
// call of one transfer and collects what was skipped.
type ErrorContext struct {
	Mode           OnError
	MaxDiagnostics int

	diagnostics []Diagnostic
	skipped     int64
}

// NewErrorContext returns an ErrorContext in the given mode.
func NewErrorContext(mode OnError) *ErrorContext {
	return &ErrorContext{
		Mode:           mode,
		MaxDiagnostics: DefaultMaxDiagnostics,
	}
}

// Soft reports whether failures are collected instead of aborting.
// A nil context is in stop mode.
func (ec *ErrorContext) Soft() bool {
	return ec != nil && ec.Mode == OnErrorIgnore
}

// Skipped returns the number of rows skipped so far.
func (ec *ErrorContext) Skipped() int64 {
	if ec == nil {
		return 0
	}
	return ec.skipped
}

// Diagnostics returns the recorded diagnostics, oldest first.
func (ec *ErrorContext) Diagnostics() []Diagnostic {
	if ec == nil {
		return nil
	}
	return ec.diagnostics
}

// classify decides the fate of a row failure exactly once. It returns nil when
// the failure was recorded and the row should be skipped, or the error that
// must abort the transfer.
func (ec *ErrorContext) classify(rerr *RecordError, record []byte) error {
	if !ec.Soft() || errors.Is(rerr, ErrUnrecognizedValueKind) || errors.Is(rerr, ErrSourceRead) {
		return rerr
	}

	ec.skipped++
	if ec.MaxDiagnostics > 0 && len(ec.diagnostics) >= ec.MaxDiagnostics {
		return nil
	}

	data := record
	if len(data) > maxDiagnosticData {
		data = data[:maxDiagnosticData]
	}
	ec.diagnostics = append(ec.diagnostics, Diagnostic{
		Line:   rerr.Line,
		Column: rerr.Column,
		Reason: rerr.Err.Error(),
		Data:   string(data),
	})
	return nil
}

package core

import (
	"context"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

// ContextCheckInterval is how often, in rows, to check for context cancellation.
var ContextCheckInterval = 100

// rowSource adapts the import routine to pgx.CopyFromSource. Skipped rows
// are consumed internally and never reach the COPY stream.
type rowSource struct {
	ctx     context.Context
	routine jsonlines.CopyFromRoutine
	st      *jsonlines.FromState

	values []any
	nulls  []bool

	rows  int64
	calls int
	err   error

	// progress is called every ContextCheckInterval rows. Optional.
	progress func(rows int64)
}

func newRowSource(ctx context.Context, st *jsonlines.FromState, width int) *rowSource {
	return &rowSource{
		ctx:     ctx,
		routine: importRoutine(),
		st:      st,
		values:  make([]any, width),
		nulls:   make([]bool, width),
	}
}

// Next implements pgx.CopyFromSource.
func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		s.calls++
		if s.calls%ContextCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				s.err = err
				return false
			}
			if s.progress != nil {
				s.progress(s.rows)
			}
		}

		res, err := s.routine.OneRow(s.st, s.values, s.nulls)
		if err != nil {
			s.err = err
			return false
		}
		switch res {
		case jsonlines.RowEOF:
			return false
		case jsonlines.RowSkipped:
			continue
		}
		s.rows++
		return true
	}
}

// Values implements pgx.CopyFromSource. NULL columns are already nil.
func (s *rowSource) Values() ([]any, error) {
	return s.values, nil
}

// Err implements pgx.CopyFromSource.
func (s *rowSource) Err() error {
	return s.err
}

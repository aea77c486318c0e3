package jsonlines

// Direction is the transfer direction a routine serves.
type Direction int

const (
	// DirectionFrom reads JSON Lines into table rows.
	DirectionFrom Direction = iota
	// DirectionTo writes table rows as JSON Lines.
	DirectionTo
)

func (d Direction) String() string {
	if d == DirectionTo {
		return "to"
	}
	return "from"
}

// RowResult is the outcome of one CopyFromRoutine.OneRow call.
type RowResult int

const (
	// RowEOF means the input is exhausted; values are untouched.
	RowEOF RowResult = iota
	// RowOK means values and nulls hold a complete row.
	RowOK
	// RowSkipped means the row failed and was recorded in the ErrorContext.
	RowSkipped
)

// Routine is the handle returned by Handler.
type Routine interface {
	Direction() Direction
}

// CopyFromRoutine converts JSON Lines records into rows.
type CopyFromRoutine interface {
	Routine
	// InFunc assigns col.Input from the column type.
	InFunc(col *Column, resolve InputResolver) error
	Start(st *FromState, schema Schema) error
	// OneRow fills values and nulls, which must have len(schema) entries.
	OneRow(st *FromState, values []any, nulls []bool) (RowResult, error)
	End(st *FromState) error
}

// CopyToRoutine converts rows into JSON Lines records.
type CopyToRoutine interface {
	Routine
	// OutFunc prepares col for output. Rendering is owned by the serializer,
	// so this only validates the descriptor.
	OutFunc(col *Column) error
	Start(st *ToState, schema Schema) error
	OneRow(st *ToState, values []any) error
	End(st *ToState) error
}

// Handler returns the routine for dir. It is pure dispatch; routines carry no
// state of their own.
func Handler(dir Direction) Routine {
	if dir == DirectionTo {
		return toRoutine{}
	}
	return fromRoutine{}
}

// Package jsonlines implements the JSON Lines format for bulk table transfer.
//
// One record is one JSON value terminated by a single '\n'. The package is the
// conversion core only: the host supplies the byte source, the target schema
// with per-column input functions, and the output sink. Nothing here touches a
// database.
//
// # Lifecycle
//
// The host asks [Handler] for the routine of a direction and drives it:
//
//	routine := jsonlines.Handler(jsonlines.DirectionFrom).(jsonlines.CopyFromRoutine)
//	st := jsonlines.NewFromState(r, jsonlines.FromOptions{Errors: ec})
//	if err := routine.Start(st, schema); err != nil { ... }
//	defer routine.End(st)
//	for {
//	    res, err := routine.OneRow(st, values, nulls)
//	    ...
//	}
//
// Rows are processed strictly one at a time on the caller's goroutine. A
// [FromState] or [ToState] must not be shared between goroutines.
//
// # Import
//
// Each line is reassembled from the raw buffer ([ReadLine]), decoded into a
// [Value] tree ([Decode]) and projected onto the schema by column name
// ([Lookup]). A missing field and an explicit null both produce a NULL column.
// Present values are rendered to text ([Value.AppendText]) and handed to the
// column's [InputFunc].
//
// # Export
//
// The whole row is serialized by the host's [RowSerializer], followed by one
// '\n', and flushed to the sink as a single write.
//
// # Errors
//
// Malformed records and conversion failures stop the transfer unless the
// [ErrorContext] is in [OnErrorIgnore] mode, in which case the row is skipped
// and a [Diagnostic] is recorded. [ErrUnrecognizedValueKind] and source read
// failures always stop the transfer.
package jsonlines

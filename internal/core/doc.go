// Package core connects the JSON Lines conversion routines to PostgreSQL.
//
// The package holds everything that knows about the database: reading column
// descriptors from the catalog, mapping type OIDs to input and output
// functions, streaming rows through COPY, and tracking running transfers.
// It can be used by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
//   - Schema: [LoadSchema] reads a table's columns; [ParseSchemaSpec] builds
//     one from "name:type" pairs when no database is available.
//   - Conversion: [InputFuncFor] resolves a column type to the function that
//     turns record text into a Go value, and [RowJSON] renders exported rows.
//   - Service: the entry point for [Service.Import], [Service.Export] and
//     [Service.ImportRows], with progress and a shared concurrency limit.
//   - Streaming: import bodies pass through [WrapForImport] before reaching
//     the line reader, so memory stays bounded by the buffer size.
//
// # Import
//
// An import is a single COPY FROM STDIN statement. Records are read line by
// line, decoded and converted in the client, and sent as typed values:
//
//  1. The caller passes an io.Reader to [Service.Import]
//  2. The reader is wrapped with BOM skipping and optional UTF-8 sanitization
//  3. Each line is matched to columns by key and converted per column type
//  4. Rows stream to the server through pgx's CopyFrom
//
// With on_error set to ignore, malformed records and values that fail to
// convert are skipped and reported as diagnostics. Any other failure aborts
// the statement and the table is left unchanged.
//
// # Export
//
// [Service.Export] selects the requested columns in text format and writes
// one compact JSON object per row, keys in column order.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - JSONL001-JSONL004: Record errors (malformed, conversion, source read)
//   - TBL001-TBL002: Unknown tables and column lists
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - XFER001-XFER006: Transfer errors (busy, cancelled, timeout, too large)
package core

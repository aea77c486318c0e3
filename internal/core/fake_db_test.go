package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeColumn struct {
	name   string
	oid    uint32
	typmod int32
}

// fakeDB implements DBTX over canned catalog rows and export rows.
type fakeDB struct {
	columns    []fakeColumn
	catalogErr error
	exportRows [][][]byte
	exportErr  error
	copyErr    error

	mu       sync.Mutex
	queries  []string
	copyCols []string
	copied   [][]any
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...interface{}) (pgx.Rows, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sql)
	f.mu.Unlock()

	if strings.Contains(sql, "pg_attribute") {
		if f.catalogErr != nil {
			return nil, f.catalogErr
		}
		data := make([][]any, len(f.columns))
		for i, c := range f.columns {
			data[i] = []any{c.name, c.oid, c.typmod}
		}
		return &fakeRows{data: data}, nil
	}
	return &fakeRows{raw: f.exportRows, err: f.exportErr}, nil
}

func (f *fakeDB) CopyFrom(_ context.Context, _ pgx.Identifier, columnNames []string, src pgx.CopyFromSource) (int64, error) {
	var rows [][]any
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		rows = append(rows, append([]any(nil), vals...))
	}
	if err := src.Err(); err != nil {
		return 0, err
	}
	if f.copyErr != nil {
		return 0, f.copyErr
	}

	f.mu.Lock()
	f.copyCols = columnNames
	f.copied = append(f.copied, rows...)
	f.mu.Unlock()
	return int64(len(rows)), nil
}

func (f *fakeDB) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

// fakeRows serves either scanned catalog data or raw text export values.
type fakeRows struct {
	data [][]any
	raw  [][][]byte
	err  error
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	n := len(r.data)
	if r.raw != nil {
		n = len(r.raw)
	}
	if r.i >= n {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *uint32:
			*p = row[i].(uint32)
		case *int32:
			*p = row[i].(int32)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	if r.data != nil {
		return r.data[r.i-1], nil
	}
	return nil, errors.New("values: not supported")
}

func (r *fakeRows) RawValues() [][]byte {
	return r.raw[r.i-1]
}

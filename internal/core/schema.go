package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

// ErrTableNotFound is returned when the target relation does not exist.
var ErrTableNotFound = errors.New("table not found")

// ErrInvalidColumns is returned for unknown or repeated column names.
var ErrInvalidColumns = errors.New("invalid column list")

// identRegex is the accepted form of one unquoted name part.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

const schemaQuery = `
SELECT a.attname, a.atttypid, a.atttypmod
FROM pg_attribute a
WHERE a.attrelid = $1::text::regclass
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum`

// ParseTableName splits "table" or "schema.table" into an identifier.
// Names are taken exactly as written and quoted when used.
func ParseTableName(name string) (pgx.Identifier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty table name", ErrTableNotFound)
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	for _, p := range parts {
		if !identRegex.MatchString(p) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return pgx.Identifier(parts), nil
}

// ParseColumnSpec splits a comma-separated column list, dropping blanks.
func ParseColumnSpec(spec string) []string {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	var cols []string
	for _, c := range strings.Split(spec, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// LoadSchema reads the column descriptors of table from the catalog. When
// columns is non-empty the schema holds exactly those columns in that order.
// Input functions are not bound; see BindInputs.
func LoadSchema(ctx context.Context, db DBTX, table pgx.Identifier, columns []string) (jsonlines.Schema, error) {
	rows, err := db.Query(ctx, schemaQuery, table.Sanitize())
	if err != nil {
		return nil, wrapCatalogError(table, err)
	}

	var all jsonlines.Schema
	for rows.Next() {
		var col jsonlines.Column
		if err := rows.Scan(&col.Name, &col.TypeOID, &col.TypeMod); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column: %w", err)
		}
		all = append(all, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapCatalogError(table, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrTableNotFound, table.Sanitize())
	}

	return SelectColumns(all, columns, table.Sanitize())
}

// SelectColumns projects all onto the named columns, in the given order.
func SelectColumns(all jsonlines.Schema, columns []string, relation string) (jsonlines.Schema, error) {
	if len(columns) == 0 {
		return all, nil
	}

	seen := make(map[string]bool, len(columns))
	out := make(jsonlines.Schema, 0, len(columns))
	for _, name := range columns {
		if seen[name] {
			return nil, fmt.Errorf("%w: column %q specified more than once", ErrInvalidColumns, name)
		}
		seen[name] = true

		i := all.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: column %q of relation %s does not exist", ErrInvalidColumns, name, relation)
		}
		out = append(out, all[i])
	}
	return out, nil
}

// BindInputs assigns every column its input function through the import
// routine's InFunc hook.
func BindInputs(schema jsonlines.Schema, m *pgtype.Map) error {
	routine := importRoutine()
	resolve := NewInputResolver(m)
	for i := range schema {
		if err := routine.InFunc(&schema[i], resolve); err != nil {
			return err
		}
	}
	return nil
}

// BindOutputs runs the export routine's OutFunc hook over every column.
func BindOutputs(schema jsonlines.Schema) error {
	routine := exportRoutine()
	for i := range schema {
		if err := routine.OutFunc(&schema[i]); err != nil {
			return err
		}
	}
	return nil
}

// wrapCatalogError turns "relation does not exist" into ErrTableNotFound.
func wrapCatalogError(table pgx.Identifier, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "42P01" || pgErr.Code == "3F000") {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table.Sanitize())
	}
	return fmt.Errorf("load schema for %s: %w", table.Sanitize(), err)
}

// typeAliases maps SQL spellings to the pgtype registry names.
var typeAliases = map[string]string{
	"smallint":         "int2",
	"integer":          "int4",
	"int":              "int4",
	"bigint":           "int8",
	"real":             "float4",
	"double":           "float8",
	"doubleprecision":  "float8",
	"charactervarying": "varchar",
	"decimal":          "numeric",
	"boolean":          "bool",
	"character":        "bpchar",
	"char":             "bpchar",
}

// typeSpecRegex matches "name" or "name(a)" or "name(a,b)", optionally "[]".
var typeSpecRegex = regexp.MustCompile(`^([a-z_][a-z0-9_]*)(?:\((\d+)(?:,(\d+))?\))?(\[\])?$`)

// ParseSchemaSpec builds a schema from "name:type,..." for use without a
// database. Types are pgtype registry names or common SQL aliases, with
// varchar(n), bpchar(n) and numeric(p,s) modifiers and a "[]" array suffix.
// Input functions are not bound; see BindInputs.
func ParseSchemaSpec(spec string, m *pgtype.Map) (jsonlines.Schema, error) {
	var schema jsonlines.Schema
	for _, part := range splitTopLevel(spec) {
		name, typ, ok := strings.Cut(part, ":")
		name, typ = strings.TrimSpace(name), strings.ToLower(strings.ReplaceAll(typ, " ", ""))
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("%w: %q is not name:type", ErrInvalidColumns, part)
		}
		if schema.Index(name) >= 0 {
			return nil, fmt.Errorf("%w: column %q specified more than once", ErrInvalidColumns, name)
		}

		col, err := resolveTypeSpec(m, typ)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidColumns, name, err)
		}
		col.Name = name
		schema = append(schema, col)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidColumns)
	}
	return schema, nil
}

func resolveTypeSpec(m *pgtype.Map, typ string) (jsonlines.Column, error) {
	match := typeSpecRegex.FindStringSubmatch(typ)
	if match == nil {
		return jsonlines.Column{}, fmt.Errorf("bad type %q", typ)
	}
	base := match[1]
	if alias, ok := typeAliases[base]; ok {
		base = alias
	}

	typmod := int32(-1)
	if match[2] != "" {
		a, _ := strconv.Atoi(match[2])
		switch {
		case base == "varchar" || base == "bpchar":
			if match[3] != "" {
				return jsonlines.Column{}, fmt.Errorf("type %s takes one modifier", base)
			}
			typmod = int32(a) + varHdrSz
		case base == "numeric":
			b := 0
			if match[3] != "" {
				b, _ = strconv.Atoi(match[3])
			}
			if a < 1 || a > 1000 || b > a {
				return jsonlines.Column{}, fmt.Errorf("numeric(%d,%d) out of range", a, b)
			}
			typmod = int32(a<<16|b) + varHdrSz
		default:
			return jsonlines.Column{}, fmt.Errorf("type %s takes no modifier", base)
		}
	}

	lookup := base
	if match[4] != "" {
		lookup = "_" + base
	}
	t, ok := m.TypeForName(lookup)
	if !ok {
		return jsonlines.Column{}, fmt.Errorf("unknown type %q", typ)
	}
	return jsonlines.Column{TypeOID: t.OID, TypeMod: typmod}, nil
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

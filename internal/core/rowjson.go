package core

// rowjson.go serializes exported rows as compact JSON objects.
//
// Values normally arrive as the server's text output for the column type.
// Rendering follows the server's row_to_json mapping:
//   - NULL becomes null and booleans become true/false
//   - Numeric types are bare numbers unless they are NaN or infinite
//   - json and jsonb are embedded as JSON, not as strings
//   - timestamp and timestamptz use ISO 8601 with a 'T' separator
//   - Arrays become JSON arrays rendered by element type
//
// Everything else is the type's text output as a JSON string.

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

// RowJSON implements jsonlines.RowSerializer. It is not safe for concurrent
// use; create one per transfer.
type RowJSON struct {
	m       *pgtype.Map
	scratch []byte
	compact bytes.Buffer
}

// NewRowJSON returns a serializer resolving types through m. A nil map uses
// pgtype.NewMap().
func NewRowJSON(m *pgtype.Map) *RowJSON {
	if m == nil {
		m = pgtype.NewMap()
	}
	return &RowJSON{m: m, scratch: make([]byte, 0, 64)}
}

// AppendRow implements jsonlines.RowSerializer.
func (r *RowJSON) AppendRow(dst []byte, schema jsonlines.Schema, values []any) ([]byte, error) {
	var err error
	dst = append(dst, '{')
	for i, col := range schema {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = jsonlines.AppendQuoted(dst, col.Name)
		dst = append(dst, ':')
		if dst, err = r.appendValue(dst, col.TypeOID, values[i]); err != nil {
			return dst, fmt.Errorf("column %s: %w", col.Name, err)
		}
	}
	return append(dst, '}'), nil
}

// text returns the server text form of v. ok is false for NULL.
func (r *RowJSON) text(oid uint32, v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case []byte:
		if x == nil {
			return "", false, nil
		}
		return string(x), true, nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return "", false, err
		}
		if dv == nil {
			return "", false, nil
		}
	}

	buf, err := r.m.Encode(oid, pgtype.TextFormatCode, v, r.scratch[:0])
	if err != nil {
		return "", false, err
	}
	if buf == nil {
		return "", false, nil
	}
	r.scratch = buf
	return string(buf), true, nil
}

func (r *RowJSON) appendValue(dst []byte, oid uint32, v any) ([]byte, error) {
	if elems, ok := v.([]any); ok {
		return r.appendElems(dst, r.elementOID(oid), elems)
	}

	text, ok, err := r.text(oid, v)
	if err != nil {
		return dst, err
	}
	if !ok {
		return append(dst, "null"...), nil
	}

	switch oid {
	case pgtype.BoolOID:
		switch text {
		case "t", "true":
			return append(dst, "true"...), nil
		case "f", "false":
			return append(dst, "false"...), nil
		}
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.OIDOID,
		pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		if isJSONNumber(text) {
			return append(dst, text...), nil
		}
	case pgtype.JSONOID, pgtype.JSONBOID:
		r.compact.Reset()
		if err := json.Compact(&r.compact, []byte(text)); err == nil {
			return append(dst, r.compact.Bytes()...), nil
		}
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return jsonlines.AppendQuoted(dst, isoTimestamp(text)), nil
	}

	if elemOID := r.elementOID(oid); elemOID != 0 {
		return r.appendArrayText(dst, oid, elemOID, text)
	}
	return jsonlines.AppendQuoted(dst, text), nil
}

// elementOID returns the element type of an array type, or 0.
func (r *RowJSON) elementOID(oid uint32) uint32 {
	t, ok := r.m.TypeForOID(oid)
	if !ok {
		return 0
	}
	ac, ok := t.Codec.(*pgtype.ArrayCodec)
	if !ok || ac.ElementType == nil {
		return 0
	}
	return ac.ElementType.OID
}

func (r *RowJSON) appendArrayText(dst []byte, oid, elemOID uint32, text string) ([]byte, error) {
	t, _ := r.m.TypeForOID(oid)
	decoded, err := t.Codec.DecodeValue(r.m, oid, pgtype.TextFormatCode, []byte(text))
	if err != nil {
		return dst, fmt.Errorf("decode array: %w", err)
	}
	elems, ok := decoded.([]any)
	if !ok {
		return jsonlines.AppendQuoted(dst, text), nil
	}
	return r.appendElems(dst, elemOID, elems)
}

func (r *RowJSON) appendElems(dst []byte, elemOID uint32, elems []any) ([]byte, error) {
	var err error
	dst = append(dst, '[')
	for i, e := range elems {
		if i > 0 {
			dst = append(dst, ',')
		}
		if dst, err = r.appendValue(dst, elemOID, e); err != nil {
			return dst, err
		}
	}
	return append(dst, ']'), nil
}

// isoTimestamp turns "2024-01-02 03:04:05.5+02" into "2024-01-02T03:04:05.5+02:00".
// Infinite and non-ISO values are returned unchanged.
func isoTimestamp(s string) string {
	if len(s) < 19 || s[10] != ' ' || s[4] != '-' {
		return s
	}
	out := s[:10] + "T" + s[11:]

	// A bare hour offset ("+02") gains minutes to be valid ISO 8601.
	if n := len(out); n >= 3 && (out[n-3] == '+' || out[n-3] == '-') && isDigits(out[n-2:]) {
		out += ":00"
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isJSONNumber reports whether s is exactly one JSON number with no
// surrounding whitespace.
func isJSONNumber(s string) bool {
	if s == "" {
		return false
	}
	first, last := s[0], s[len(s)-1]
	if first != '-' && !isDigit(first) || !isDigit(last) {
		return false
	}
	return json.Valid([]byte(s))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

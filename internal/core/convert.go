package core

// convert.go provides the column input functions used by imports.
//
// Each function turns the text rendering of one JSON field into a value the
// pgx COPY encoder accepts for the column type. Parsing follows the server's
// own input rules where they matter for round trips:
//   - Integers and floats tolerate surrounding whitespace
//   - Booleans accept t/f, true/false, yes/no, on/off, 1/0 and unique prefixes
//   - numeric(p,s), varchar(n) and char(n) enforce their type modifiers
//   - date and timestamp accept ISO forms and +/-infinity
//
// Types without a dedicated function go through the pgtype codec registered
// for the OID. Every rejection wraps jsonlines.ErrConversion.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

// varHdrSz is the offset the server adds to every length-style type modifier.
const varHdrSz = 4

var (
	dateLayouts = []string{
		"2006-01-02", "2006/01/02", "20060102",
		"1/2/2006", "01/02/2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
	timestampLayouts = []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	timestamptzLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999Z07",
		"2006-01-02T15:04:05.999999999Z07",
		"2006-01-02 15:04:05.999999999 MST",
	}
)

// conversionError builds the server-style "invalid input syntax" error.
func conversionError(typeName, text string) error {
	return fmt.Errorf("%w: invalid input syntax for type %s: %q", jsonlines.ErrConversion, typeName, text)
}

func rangeError(typeName, text string) error {
	return fmt.Errorf("%w: value %q is out of range for type %s", jsonlines.ErrConversion, text, typeName)
}

// InputFuncFor returns the input function for a column of type oid.
// The map resolves types without a dedicated parser; it must not be shared
// between concurrent transfers.
func InputFuncFor(m *pgtype.Map, oid uint32) (jsonlines.InputFunc, error) {
	switch oid {
	case pgtype.Int2OID:
		return intInput(16, "smallint"), nil
	case pgtype.Int4OID:
		return intInput(32, "integer"), nil
	case pgtype.Int8OID:
		return intInput(64, "bigint"), nil
	case pgtype.Float4OID:
		return floatInput(32), nil
	case pgtype.Float8OID:
		return floatInput(64), nil
	case pgtype.NumericOID:
		return numericInput, nil
	case pgtype.BoolOID:
		return boolInput, nil
	case pgtype.TextOID, pgtype.NameOID:
		return textInput, nil
	case pgtype.VarcharOID:
		return varcharInput, nil
	case pgtype.BPCharOID:
		return bpcharInput, nil
	case pgtype.DateOID:
		return dateInput, nil
	case pgtype.TimestampOID:
		return timestampInput, nil
	case pgtype.TimestamptzOID:
		return timestamptzInput, nil
	case pgtype.UUIDOID:
		return uuidInput, nil
	case pgtype.JSONOID, pgtype.JSONBOID:
		return jsonInput, nil
	}

	if m == nil {
		return nil, fmt.Errorf("no input function for type oid %d", oid)
	}
	t, ok := m.TypeForOID(oid)
	if !ok {
		// Unregistered types (extensions, enums, domains) are sent as text and
		// parsed by the server.
		return textInput, nil
	}
	return codecInput(m, t), nil
}

// NewInputResolver adapts InputFuncFor to a jsonlines.InputResolver.
func NewInputResolver(m *pgtype.Map) jsonlines.InputResolver {
	return func(oid uint32) (jsonlines.InputFunc, error) {
		return InputFuncFor(m, oid)
	}
}

func codecInput(m *pgtype.Map, t *pgtype.Type) jsonlines.InputFunc {
	return func(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
		v, err := t.Codec.DecodeValue(m, t.OID, pgtype.TextFormatCode, []byte(text))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid input for type %s: %w", jsonlines.ErrConversion, t.Name, err)
		}
		return v, nil
	}
}

// ToPgInt parses a whole number that must fit in bits.
func ToPgInt(s string, bits int) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func intInput(bits int, typeName string) jsonlines.InputFunc {
	return func(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
		n, err := ToPgInt(text, bits)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return nil, rangeError(typeName, text)
			}
			return nil, conversionError(typeName, text)
		}
		switch bits {
		case 16:
			return pgtype.Int2{Int16: int16(n), Valid: true}, nil
		case 32:
			return pgtype.Int4{Int32: int32(n), Valid: true}, nil
		default:
			return pgtype.Int8{Int64: n, Valid: true}, nil
		}
	}
}

func floatInput(bits int) jsonlines.InputFunc {
	typeName := "double precision"
	if bits == 32 {
		typeName = "real"
	}
	return func(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(text), bits)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return nil, rangeError(typeName, text)
			}
			return nil, conversionError(typeName, text)
		}
		if bits == 32 {
			return pgtype.Float4{Float32: float32(f), Valid: true}, nil
		}
		return pgtype.Float8{Float64: f, Valid: true}, nil
	}
}

// numericTypmod unpacks numeric(p,s). ok is false for an unconstrained column.
func numericTypmod(typmod int32) (precision, scale int32, ok bool) {
	if typmod < varHdrSz {
		return 0, 0, false
	}
	tm := typmod - varHdrSz
	precision = (tm >> 16) & 0xffff
	scale = int32(int16(tm & 0xffff))
	return precision, scale, true
}

// ToPgNumeric parses a numeric literal and applies the numeric(p,s) modifier:
// the value is rounded to scale and rejected when its integer part needs more
// than p-s digits.
func ToPgNumeric(s string, typmod int32) (pgtype.Numeric, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan":
		return pgtype.Numeric{NaN: true, Valid: true}, nil
	case "infinity", "+infinity", "inf", "+inf":
		return pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}, nil
	case "-infinity", "-inf":
		return pgtype.Numeric{InfinityModifier: pgtype.NegativeInfinity, Valid: true}, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, conversionError("numeric", s)
	}

	if precision, scale, ok := numericTypmod(typmod); ok {
		d = d.Round(scale)
		limit := decimal.New(1, precision-scale)
		if d.Abs().Cmp(limit) >= 0 {
			return pgtype.Numeric{}, fmt.Errorf(
				"%w: numeric field overflow: a field with precision %d, scale %d must round to an absolute value less than 10^%d",
				jsonlines.ErrConversion, precision, scale, precision-scale)
		}
	}

	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}, nil
}

func numericInput(text string, typmod int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgNumeric(text, typmod)
}

// ToPgBool parses the server's boolean literals, including unique prefixes
// such as "tr" or "of". Matching is case-insensitive.
func ToPgBool(s string) (pgtype.Bool, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return pgtype.Bool{}, conversionError("boolean", s)
	}

	switch v {
	case "1":
		return pgtype.Bool{Bool: true, Valid: true}, nil
	case "0":
		return pgtype.Bool{Bool: false, Valid: true}, nil
	}

	switch {
	case strings.HasPrefix("true", v), strings.HasPrefix("yes", v):
		return pgtype.Bool{Bool: true, Valid: true}, nil
	case strings.HasPrefix("false", v), strings.HasPrefix("no", v):
		return pgtype.Bool{Bool: false, Valid: true}, nil
	case len(v) >= 2 && strings.HasPrefix("on", v):
		return pgtype.Bool{Bool: true, Valid: true}, nil
	case len(v) >= 2 && strings.HasPrefix("off", v):
		return pgtype.Bool{Bool: false, Valid: true}, nil
	}
	return pgtype.Bool{}, conversionError("boolean", s)
}

func boolInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgBool(text)
}

// ToPgText returns s unchanged as a valid text value.
func ToPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func textInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgText(text), nil
}

// fitLength enforces a character(n)/varchar(n) limit. Excess characters are
// accepted only when they are all spaces, and are then cut.
func fitLength(s string, typmod int32, typeName string) (string, error) {
	if typmod < varHdrSz {
		return s, nil
	}
	limit := int(typmod - varHdrSz)
	if utf8.RuneCountInString(s) <= limit {
		return s, nil
	}

	cut := 0
	for i := 0; i < limit; i++ {
		_, size := utf8.DecodeRuneInString(s[cut:])
		cut += size
	}
	if strings.Trim(s[cut:], " ") != "" {
		return "", fmt.Errorf("%w: value too long for type %s(%d)", jsonlines.ErrConversion, typeName, limit)
	}
	return s[:cut], nil
}

func varcharInput(text string, typmod int32, _ *jsonlines.ErrorContext) (any, error) {
	s, err := fitLength(text, typmod, "character varying")
	if err != nil {
		return nil, err
	}
	return ToPgText(s), nil
}

func bpcharInput(text string, typmod int32, _ *jsonlines.ErrorContext) (any, error) {
	s, err := fitLength(text, typmod, "character")
	if err != nil {
		return nil, err
	}
	if typmod >= varHdrSz {
		if pad := int(typmod-varHdrSz) - utf8.RuneCountInString(s); pad > 0 {
			s += strings.Repeat(" ", pad)
		}
	}
	return ToPgText(s), nil
}

// infinity maps the server's infinite date/time literals.
func infinity(s string) (pgtype.InfinityModifier, bool) {
	switch strings.ToLower(s) {
	case "infinity", "+infinity":
		return pgtype.Infinity, true
	case "-infinity":
		return pgtype.NegativeInfinity, true
	}
	return pgtype.Finite, false
}

// ToPgDate parses an ISO or common four-digit-year date.
func ToPgDate(s string) (pgtype.Date, error) {
	s = strings.TrimSpace(s)
	if inf, ok := infinity(s); ok {
		return pgtype.Date{InfinityModifier: inf, Valid: true}, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}, nil
		}
	}
	return pgtype.Date{}, conversionError("date", s)
}

func dateInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgDate(text)
}

// ToPgTimestamp parses a timestamp without time zone. A zone suffix is
// ignored the way the server ignores it for this type.
func ToPgTimestamp(s string) (pgtype.Timestamp, error) {
	s = strings.TrimSpace(s)
	if inf, ok := infinity(s); ok {
		return pgtype.Timestamp{InfinityModifier: inf, Valid: true}, nil
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Timestamp{Time: t, Valid: true}, nil
		}
	}
	for _, layout := range timestamptzLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
			return pgtype.Timestamp{Time: wall, Valid: true}, nil
		}
	}
	return pgtype.Timestamp{}, conversionError("timestamp without time zone", s)
}

func timestampInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgTimestamp(text)
}

// ToPgTimestamptz parses a timestamp with time zone. Values without an offset
// are taken as UTC.
func ToPgTimestamptz(s string) (pgtype.Timestamptz, error) {
	s = strings.TrimSpace(s)
	if inf, ok := infinity(s); ok {
		return pgtype.Timestamptz{InfinityModifier: inf, Valid: true}, nil
	}
	for _, layout := range timestamptzLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Timestamptz{Time: t, Valid: true}, nil
		}
	}
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return pgtype.Timestamptz{Time: t, Valid: true}, nil
		}
	}
	return pgtype.Timestamptz{}, conversionError("timestamp with time zone", s)
}

func timestamptzInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgTimestamptz(text)
}

// ToPgUUID parses a UUID in any form google/uuid accepts.
func ToPgUUID(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return pgtype.UUID{}, conversionError("uuid", s)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func uuidInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	return ToPgUUID(text)
}

// jsonInput accepts any syntactically valid JSON document. Nested fields
// arrive here already rendered as canonical JSON text.
func jsonInput(text string, _ int32, _ *jsonlines.ErrorContext) (any, error) {
	if !json.Valid([]byte(text)) {
		return nil, conversionError("json", text)
	}
	return text, nil
}

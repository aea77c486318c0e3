package jsonlines

// value.go decodes one record into an owned value tree and renders values
// back to text for the column input functions.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindInvalid Kind = iota // zero Value; never produced by Decode
	KindNull
	KindBool
	KindString
	KindNumber
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is one key/value pair of an object, in source order.
type Field struct {
	Key   string
	Value Value
}

// Value is a node of a decoded JSON tree. Children are owned by their parent.
type Value struct {
	kind   Kind
	b      bool
	s      string // string contents or number literal
	fields []Field
	elems  []Value
}

// NullValue returns a JSON null.
func NullValue() Value { return Value{kind: KindNull} }

// BoolValue returns a JSON boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// StringValue returns a JSON string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// NumberValue returns a JSON number from its literal text.
func NumberValue(lit string) Value { return Value{kind: KindNumber, s: lit} }

// ObjectValue returns a JSON object with fields in the given order.
func ObjectValue(fields ...Field) Value { return Value{kind: KindObject, fields: fields} }

// ArrayValue returns a JSON array.
func ArrayValue(elems ...Value) Value { return Value{kind: KindArray, elems: elems} }

// Kind returns the type tag.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the payload of a boolean.
func (v Value) Bool() bool { return v.b }

// Str returns the contents of a string or the literal of a number.
func (v Value) Str() string { return v.s }

// Fields returns the members of an object in source order.
func (v Value) Fields() []Field { return v.fields }

// Elems returns the elements of an array.
func (v Value) Elems() []Value { return v.elems }

// IsNull reports whether v is a JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Decode parses one record. The text must hold exactly one JSON value,
// optionally surrounded by whitespace.
func Decode(text []byte) (Value, error) {
	if !json.Valid(text) {
		return Value{}, fmt.Errorf("%w: invalid JSON", ErrMalformedRecord)
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedValueKind) {
			return Value{}, err
		}
		return Value{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		if err := checkNUL(t); err != nil {
			return Value{}, err
		}
		return StringValue(t), nil
	case json.Number:
		return NumberValue(strings.Clone(string(t))), nil
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", rune(t))
	default:
		return Value{}, fmt.Errorf("%w: token %T", ErrUnrecognizedValueKind, tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, not string", tok)
		}
		if err := checkNUL(key); err != nil {
			return Value{}, err
		}
		child, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Key: key, Value: child})
	}
	if _, err := dec.Token(); err != nil { // '}'
		return Value{}, err
	}
	return ObjectValue(fields...), nil
}

// checkNUL rejects strings holding U+0000, which text column types cannot
// store and which the server refuses anywhere in a COPY stream.
func checkNUL(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return errors.New(`unsupported Unicode escape sequence: \u0000 cannot be converted to text`)
	}
	return nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	var elems []Value
	for dec.More() {
		child, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, child)
	}
	if _, err := dec.Token(); err != nil { // ']'
		return Value{}, err
	}
	return ArrayValue(elems...), nil
}

// Lookup returns the first top-level field of v whose key equals key byte for
// byte. It reports false when v is not an object or has no such field.
func Lookup(v Value, key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// AppendText appends the text form of v handed to column input functions:
// booleans as true/false, strings raw, numbers in canonical decimal form,
// objects and arrays as canonical JSON. A null appends nothing; callers
// filter nulls before rendering.
func (v Value) AppendText(dst []byte) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return dst, nil
	case KindBool:
		if v.b {
			return append(dst, "true"...), nil
		}
		return append(dst, "false"...), nil
	case KindString:
		return append(dst, v.s...), nil
	case KindNumber:
		return append(dst, CanonicalNumber(v.s)...), nil
	case KindObject, KindArray:
		return v.AppendJSON(dst)
	default:
		return dst, fmt.Errorf("%w: %s", ErrUnrecognizedValueKind, v.kind)
	}
}

// Text is AppendText into a fresh string.
func (v Value) Text() (string, error) {
	b, err := v.AppendText(nil)
	return string(b), err
}

// AppendJSON appends v as canonical JSON text: ", " between elements and
// ": " after keys, numbers canonicalized. Object keys are ordered shorter
// first, then bytewise, and only the last of a repeated key is kept, so
// nested documents render the way jsonb prints them.
func (v Value) AppendJSON(dst []byte) ([]byte, error) {
	var err error
	switch v.kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindBool, KindNumber:
		return v.AppendText(dst)
	case KindString:
		return AppendQuoted(dst, v.s), nil
	case KindObject:
		dst = append(dst, '{')
		for i, f := range canonicalFields(v.fields) {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			dst = AppendQuoted(dst, f.Key)
			dst = append(dst, ": "...)
			if dst, err = f.Value.AppendJSON(dst); err != nil {
				return dst, err
			}
		}
		return append(dst, '}'), nil
	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.elems {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			if dst, err = e.AppendJSON(dst); err != nil {
				return dst, err
			}
		}
		return append(dst, ']'), nil
	default:
		return dst, fmt.Errorf("%w: %s", ErrUnrecognizedValueKind, v.kind)
	}
}

// canonicalFields dedupes fields keeping the last value of each key and
// sorts them by key length, then bytes. fields is not modified.
func canonicalFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		if i, ok := seen[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		seen[f.Key] = len(out)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return out
}

// CanonicalNumber renders a JSON number literal the way an arbitrary
// precision numeric type prints it: plain decimal notation with no exponent,
// keeping the literal's scale ("1.50" stays "1.50", "1e3" becomes "1000").
func CanonicalNumber(lit string) string {
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return lit
	}
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

const hexDigits = "0123456789abcdef"

// AppendQuoted appends s as a JSON string literal the way the server's
// escape_json does. Only '"', '\\' and control characters are escaped; all
// other bytes, including U+2028, U+2029 and invalid UTF-8, are copied through.
func AppendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

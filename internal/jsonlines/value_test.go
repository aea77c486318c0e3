package jsonlines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`   `,
		`{"id": }`,
		`{"id": 1`,
		`{"id": 1} {"id": 2}`,
		`{id: 1}`,
		`[1, 2,]`,
		`tru`,
	}
	for _, in := range inputs {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedRecord, "input %q", in)
	}
}

func TestDecode_Tree(t *testing.T) {
	v, err := Decode([]byte(` {"b": [1, "x", null], "a": {"t": true}, "n": -1.50e1} `))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind())

	fields := v.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "b", fields[0].Key)
	assert.Equal(t, "a", fields[1].Key)
	assert.Equal(t, "n", fields[2].Key)

	arr := fields[0].Value
	require.Equal(t, KindArray, arr.Kind())
	require.Len(t, arr.Elems(), 3)
	assert.Equal(t, KindNumber, arr.Elems()[0].Kind())
	assert.Equal(t, "x", arr.Elems()[1].Str())
	assert.True(t, arr.Elems()[2].IsNull())

	assert.Equal(t, "-1.50e1", fields[2].Value.Str())
}

func TestDecode_NULEscape(t *testing.T) {
	for _, in := range []string{
		`{"s": "a\u0000b"}`,
		`{"a\u0000": 1}`,
		`{"o": {"k": ["\u0000"]}}`,
	} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedRecord, "input %s", in)
	}

	v, err := Decode([]byte(`{"s": "a\u0001b"}`))
	require.NoError(t, err)
	got, _ := Lookup(v, "s")
	assert.Equal(t, "a\x01b", got.Str())
}

func TestLookup(t *testing.T) {
	v, err := Decode([]byte(`{"id": 1, "Id": 2, "id": 3, "nested": {"id": 4}}`))
	require.NoError(t, err)

	got, ok := Lookup(v, "id")
	require.True(t, ok)
	assert.Equal(t, "1", got.Str(), "first match wins")

	got, ok = Lookup(v, "Id")
	require.True(t, ok)
	assert.Equal(t, "2", got.Str())

	_, ok = Lookup(v, "ID")
	assert.False(t, ok, "lookup is case-sensitive")

	_, ok = Lookup(v, "missing")
	assert.False(t, ok)

	arr, err := Decode([]byte(`[{"id": 1}]`))
	require.NoError(t, err)
	_, ok = Lookup(arr, "id")
	assert.False(t, ok, "non-object root has no fields")
}

func TestAppendText(t *testing.T) {
	tests := []struct {
		json string
		want string
	}{
		{`true`, "true"},
		{`false`, "false"},
		{`"ann"`, "ann"},
		{`"tab\there \"q\""`, "tab\there \"q\""},
		{`"café"`, "café"},
		{`1`, "1"},
		{`-0`, "0"},
		{`1.50`, "1.50"},
		{`1e3`, "1000"},
		{`1.5e-3`, "0.0015"},
		{`12345678901234567890123`, "12345678901234567890123"},
		{`{"b":1,"a":[true,null,"x"]}`, `{"a": [true, null, "x"], "b": 1}`},
		{`{"bb": 1, "a": 2, "a": 3}`, `{"a": 3, "bb": 1}`},
		{`{"ab": 1, "b": 2, "aa": {"y": 1, "x": 2}}`, `{"b": 2, "aa": {"x": 2, "y": 1}, "ab": 1}`},
		{`[{"b": 1, "a": 2}, {"b": 1, "b": 2}]`, `[{"a": 2, "b": 1}, {"b": 2}]`},
		{`[]`, `[]`},
		{`{}`, `{}`},
		{`{"k":"line\nbreak"}`, `{"k": "line\nbreak"}`},
		{`[1.0e2, {"z": {}}]`, `[100, {"z": {}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			v, err := Decode([]byte(tt.json))
			require.NoError(t, err)
			got, err := v.Text()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppendText_InvalidKind(t *testing.T) {
	_, err := Value{}.Text()
	assert.ErrorIs(t, err, ErrUnrecognizedValueKind)

	_, err = ArrayValue(NumberValue("1"), Value{}).Text()
	assert.ErrorIs(t, err, ErrUnrecognizedValueKind)
}

func TestAppendQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `""`},
		{"plain", `"plain"`},
		{`a"b\c`, `"a\"b\\c"`},
		{"\b\f\n\r\t", `"\b\f\n\r\t"`},
		{"\x01\x1f", `"\u0001\u001f"`},
		{"<é>/", `"<é>/"`},
	}
	for _, tt := range tests {
		got := string(AppendQuoted(nil, tt.in))
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

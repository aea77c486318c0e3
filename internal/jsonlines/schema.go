package jsonlines

// InputFunc converts the text form of one field to a column value.
//
// typmod is the column's type modifier (-1 when none). Implementations return
// an error wrapping ErrConversion when the text is rejected; the caller decides
// whether that aborts the transfer or skips the row based on ec.
type InputFunc func(text string, typmod int32, ec *ErrorContext) (any, error)

// InputResolver returns the input function for a type OID.
type InputResolver func(oid uint32) (InputFunc, error)

// Column describes one target column.
type Column struct {
	Name    string
	TypeOID uint32
	TypeMod int32
	Input   InputFunc
}

// Schema is the ordered list of target columns. It is read-only once a
// transfer starts.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

package errors

// TypeError reports a value whose runtime type disagrees with its column's
// declared DataType — including a spatial literal (RECT/CIRCLE/KNN) used
// against a non-POINT column, and value-count mismatches against a
// schema's column list.
type TypeError struct {
	*baseError
	column   string
	wantType string
	gotValue any
}

// NewTypeError constructs a TypeError wrapping an optional cause.
func NewTypeError(err error, code ErrorCode, msg string) *TypeError {
	return &TypeError{baseError: newBase(err, code, msg)}
}

func (te *TypeError) WithMessage(msg string) *TypeError {
	te.baseError.WithMessage(msg)
	return te
}

func (te *TypeError) WithCode(code ErrorCode) *TypeError {
	te.baseError.WithCode(code)
	return te
}

func (te *TypeError) WithDetail(key string, value any) *TypeError {
	te.baseError.WithDetail(key, value)
	return te
}

// WithColumn records which column's declared type was violated.
func (te *TypeError) WithColumn(column string) *TypeError {
	te.column = column
	return te
}

// WithWantType records the column's declared DataType, as text.
func (te *TypeError) WithWantType(t string) *TypeError {
	te.wantType = t
	return te
}

// WithGotValue captures the offending value for diagnostics.
func (te *TypeError) WithGotValue(v any) *TypeError {
	te.gotValue = v
	return te
}

func (te *TypeError) Column() string   { return te.column }
func (te *TypeError) WantType() string { return te.wantType }
func (te *TypeError) GotValue() any    { return te.gotValue }

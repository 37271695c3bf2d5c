package errors

// CapabilityError reports an operation the chosen index cannot perform:
// range queries against HASH, spatial queries against anything but RTREE,
// or a CREATE INDEX naming more than one column.
type CapabilityError struct {
	*baseError
	indexType string
	operation string
}

// NewCapabilityError constructs a CapabilityError wrapping an optional cause.
func NewCapabilityError(err error, code ErrorCode, msg string) *CapabilityError {
	return &CapabilityError{baseError: newBase(err, code, msg)}
}

func (ce *CapabilityError) WithMessage(msg string) *CapabilityError {
	ce.baseError.WithMessage(msg)
	return ce
}

func (ce *CapabilityError) WithCode(code ErrorCode) *CapabilityError {
	ce.baseError.WithCode(code)
	return ce
}

func (ce *CapabilityError) WithDetail(key string, value any) *CapabilityError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithIndexType records the index family that rejected the operation.
func (ce *CapabilityError) WithIndexType(t string) *CapabilityError {
	ce.indexType = t
	return ce
}

// WithOperation records the rejected operation's name (e.g. "range_search").
func (ce *CapabilityError) WithOperation(op string) *CapabilityError {
	ce.operation = op
	return ce
}

func (ce *CapabilityError) IndexType() string { return ce.indexType }
func (ce *CapabilityError) Operation() string { return ce.operation }

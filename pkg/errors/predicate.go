package errors

// PredicateError reports a reference to an unknown column inside a
// condition tree, an ORDER BY clause, or a SELECT projection list.
type PredicateError struct {
	*baseError
	column string
	clause string
}

// NewPredicateError constructs a PredicateError wrapping an optional cause.
func NewPredicateError(err error, code ErrorCode, msg string) *PredicateError {
	return &PredicateError{baseError: newBase(err, code, msg)}
}

func (pe *PredicateError) WithMessage(msg string) *PredicateError {
	pe.baseError.WithMessage(msg)
	return pe
}

func (pe *PredicateError) WithCode(code ErrorCode) *PredicateError {
	pe.baseError.WithCode(code)
	return pe
}

func (pe *PredicateError) WithDetail(key string, value any) *PredicateError {
	pe.baseError.WithDetail(key, value)
	return pe
}

// WithColumn records the unresolvable column name.
func (pe *PredicateError) WithColumn(column string) *PredicateError {
	pe.column = column
	return pe
}

// WithClause records where the reference occurred ("WHERE", "ORDER BY", "SELECT").
func (pe *PredicateError) WithClause(clause string) *PredicateError {
	pe.clause = clause
	return pe
}

func (pe *PredicateError) Column() string { return pe.column }
func (pe *PredicateError) Clause() string { return pe.clause }

package rx

import "errors"

var (
	// ErrInvalidExpression is returned for syntactically malformed
	// expressions: unbalanced brackets or groups, operator misuse, or an
	// empty operand.
	ErrInvalidExpression = errors.New("rx: invalid expression")

	// ErrTooComplex is returned when a compile-time cap is exceeded: DFA
	// state count, character-set table size, or multi-pattern state count.
	ErrTooComplex = errors.New("rx: expression too complex")

	// ErrInvalidHandle is returned when a nil pattern is used.
	ErrInvalidHandle = errors.New("rx: invalid handle")
)

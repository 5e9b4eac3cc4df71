package index

import "errors"

var (
	// ErrUnsupportedVersion is returned when decoding an index block written
	// with a schema version this package does not know.
	ErrUnsupportedVersion = errors.New("unsupported index schema version")

	// ErrUnsupportedType is returned when building an index over a column
	// type that has no ordering.
	ErrUnsupportedType = errors.New("unsupported index column type")

	// ErrInvalidPredicate is returned when a predicate's operands do not fit
	// its operator or the indexed column.
	ErrInvalidPredicate = errors.New("invalid predicate")

	// ErrMalformedBlock is returned when an index block cannot be decoded.
	ErrMalformedBlock = errors.New("malformed index block")
)

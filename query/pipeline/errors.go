package pipeline

import "errors"

var (
	// ErrIllegalConnectionState is returned when a stage is wired in a way
	// it cannot execute, e.g. a mixing stage without any input.
	ErrIllegalConnectionState = errors.New("illegal connection state")

	// ErrSharedNumOverflow is returned by Share once every output slot of a
	// mixing stage was handed out.
	ErrSharedNumOverflow = errors.New("mixed shared num overflow")

	// ErrAlreadyExecuted is returned when Execute is called a second time on
	// the same handle.
	ErrAlreadyExecuted = errors.New("processor already executed")

	// ErrInvalidWidth is returned when a mixing stage is created with fewer
	// than one output.
	ErrInvalidWidth = errors.New("invalid mixed processor width")

	// ErrReceiverClosed is returned when sending into a stream whose
	// consumer has gone away.
	ErrReceiverClosed = errors.New("receiver closed")

	// ErrQueryClosed is returned when a task is scheduled on a query context
	// that was closed or cancelled.
	ErrQueryClosed = errors.New("query context closed")
)

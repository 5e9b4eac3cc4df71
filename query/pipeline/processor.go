package pipeline

import (
	"context"
)

// Processor is a stage of a pipeline. It is wired to its upstream stages with
// ConnectTo and produces its output with Execute, which may be called at most
// once.
type Processor interface {
	Name() string
	ConnectTo(input Processor) error
	Inputs() []Processor
	Execute(ctx context.Context) (Stream, error)
}

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
)

// SourceProcessor emits a fixed set of records. Ownership of the records is
// handed to the stream returned by Execute.
type SourceProcessor struct {
	name string

	mtx      sync.Mutex
	records  []arrow.Record
	executed bool
}

var _ Processor = (*SourceProcessor)(nil)

func NewSourceProcessor(name string, records ...arrow.Record) *SourceProcessor {
	return &SourceProcessor{name: name, records: records}
}

func (s *SourceProcessor) Name() string {
	return s.name
}

func (s *SourceProcessor) ConnectTo(_ Processor) error {
	return fmt.Errorf("%w: source %q cannot have inputs", ErrIllegalConnectionState, s.name)
}

func (s *SourceProcessor) Inputs() []Processor {
	return nil
}

func (s *SourceProcessor) Execute(_ context.Context) (Stream, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.executed {
		return nil, fmt.Errorf("%w: source %q", ErrAlreadyExecuted, s.name)
	}
	s.executed = true

	records := s.records
	s.records = nil
	return newSliceStream(records), nil
}

// EmptyProcessor produces a stream without any item.
type EmptyProcessor struct{}

var _ Processor = EmptyProcessor{}

func (EmptyProcessor) Name() string {
	return "EmptyProcessor"
}

func (EmptyProcessor) ConnectTo(_ Processor) error {
	return fmt.Errorf("%w: empty processor cannot have inputs", ErrIllegalConnectionState)
}

func (EmptyProcessor) Inputs() []Processor {
	return nil
}

func (EmptyProcessor) Execute(_ context.Context) (Stream, error) {
	return newSliceStream(nil), nil
}

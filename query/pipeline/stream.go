package pipeline

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
)

// Result is a single item of a Stream. Exactly one of Record and Err is set.
type Result struct {
	Record arrow.Record
	Err    error
}

// Stream is a lazy, finite and non-restartable sequence of records.
//
// Next returns io.EOF once the stream is exhausted. Any other error is an
// in-band error item: the stream may still yield further records after it.
// Records returned by Next are owned by the caller, who must release them.
// Close releases anything still buffered and tells producers to stop.
type Stream interface {
	Next(ctx context.Context) (arrow.Record, error)
	Close() error
}

// sliceStream yields records that are already materialized.
type sliceStream struct {
	records []arrow.Record
}

func newSliceStream(records []arrow.Record) *sliceStream {
	return &sliceStream{records: records}
}

func (s *sliceStream) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	r := s.records[0]
	s.records[0] = nil
	s.records = s.records[1:]
	return r, nil
}

func (s *sliceStream) Close() error {
	for _, r := range s.records {
		r.Release()
	}
	s.records = nil
	return nil
}

// releaseResult drops a result nobody is going to consume.
func releaseResult(r Result) {
	if r.Record != nil {
		r.Record.Release()
	}
}
